package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	logx "github.com/mailsort/server/pkg/logger"
)

var (
	// ErrUnreadable means the document could not be parsed as a PDF.
	ErrUnreadable = errors.New("unreadable pdf")
	// ErrNoText means the document parsed but no page yielded text.
	ErrNoText = errors.New("pdf contains no extractable text")
)

// Extract returns the text of every page, each page followed by a newline.
func Extract(ctx context.Context, rs io.ReadSeeker) (string, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	fonts := openFonts(data)

	var b strings.Builder
	found := false
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			logx.Warn().Err(err).Int("page", page).Msg("skipping unreadable pdf page")
			b.WriteString("\n")
			continue
		}
		text := ""
		if r != nil {
			content, err := io.ReadAll(r)
			if err != nil {
				return "", fmt.Errorf("read page %d: %w", page, err)
			}
			text = ScanContent(content, fonts.page(page))
		}
		if strings.TrimSpace(text) != "" {
			found = true
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	if !found {
		return "", ErrNoText
	}
	return b.String(), nil
}
