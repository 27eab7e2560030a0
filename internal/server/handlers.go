package server

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/mailsort/server/internal/classifier/model"
	"github.com/mailsort/server/internal/classifier/session"
	errx "github.com/mailsort/server/internal/core/error"
	logx "github.com/mailsort/server/pkg/logger"
)

const pdfContentType = "application/pdf"

var (
	errMissingFile = errors.New("multipart field \"file\" is required")
	errNotPDF      = errors.New("uploaded file is not a pdf")
)

type handlers struct {
	classifier  Classifier
	extractText TextExtractor
	timeout     time.Duration
}

func (h *handlers) register(app *fiber.App) {
	app.Get("/health", h.health)

	api := app.Group("/api")
	api.Post("/classify", h.classify)
	api.Post("/parse-pdf", h.parsePDF)
}

// requestContext bounds the request; fasthttp does not report client
// disconnects, so the deadline is the only cancellation signal.
func (h *handlers) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := session.WithRequestID(c.UserContext(), requestID(c))
	return context.WithTimeout(ctx, h.timeout)
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) classify(c *fiber.Ctx) error {
	var in model.ClassifyInput
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return errx.BadRequest(err, "invalid request body")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	env, err := h.classifier.Classify(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(env)
}

func (h *handlers) parsePDF(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return errx.BadRequest(errMissingFile, "file is required")
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get(fiber.HeaderContentType)))
	isPDF := strings.EqualFold(filepath.Ext(header.Filename), ".pdf") || strings.HasPrefix(contentType, pdfContentType)
	if !isPDF {
		return errx.BadRequest(errNotPDF, "only PDF files are supported")
	}

	file, err := header.Open()
	if err != nil {
		return errx.Internal(err, "could not read the uploaded file")
	}
	defer file.Close()

	ctx, cancel := h.requestContext(c)
	defer cancel()

	text, err := h.extractText(ctx, file)
	if err != nil {
		logx.With(requestID(c)).Warn().Err(err).Str("file", header.Filename).Msg("pdf text extraction failed")
		return errx.Internal(err, "could not extract text from the PDF")
	}
	return c.JSON(fiber.Map{"text": text})
}
