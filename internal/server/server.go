package server

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mailsort/server/internal/classifier/model"
	"github.com/mailsort/server/internal/core"
)

const (
	bodyLimit      = 10 * 1024 * 1024
	requestTimeout = 90 * time.Second
)

// Config is the HTTP server configuration read from the environment.
type Config struct {
	Port             string `envconfig:"PORT" default:"8000"`
	CorsAllowOrigins string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
}

// Classifier classifies one email.
type Classifier interface {
	Classify(ctx context.Context, in model.ClassifyInput) (*model.ClassifyEnvelope, error)
}

// TextExtractor pulls plain text out of an uploaded PDF.
type TextExtractor func(ctx context.Context, rs io.ReadSeeker) (string, error)

// Deps are the collaborators the routes call into.
type Deps struct {
	Environment core.Environment
	Classifier  Classifier
	ExtractText TextExtractor
	// Timeout bounds each request; zero uses the default.
	Timeout time.Duration
}

// New builds the fiber app with middleware and routes registered.
func New(cfg Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler(),
		DisableStartupMessage: deps.Environment.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit,
		ServerHeader:          "",
	})

	// order matters: request id first so every later log line carries it,
	// and the logger wraps recover so panics are logged with their final status
	app.Use(RequestID())
	app.Use(RequestLogger())
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: logPanic,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  corsOrigins(cfg.CorsAllowOrigins),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	h := &handlers{classifier: deps.Classifier, extractText: deps.ExtractText, timeout: timeout}
	h.register(app)
	return app
}

func corsOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, ",")
}
