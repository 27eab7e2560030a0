package pdftext

import (
	"bytes"

	"github.com/ledongthuc/pdf"

	logx "github.com/mailsort/server/pkg/logger"
)

// fontTable looks up the glyph decoders of each page's font resources,
// including ToUnicode CMaps of composite fonts.
type fontTable struct {
	r *pdf.Reader
}

func openFonts(data []byte) (t *fontTable) {
	t = &fontTable{}
	defer func() {
		if rec := recover(); rec != nil {
			logx.Warn().Interface("panic", rec).Msg("pdf font tables unreadable, decoding glyphs as bytes")
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logx.Warn().Err(err).Msg("pdf font tables unreadable, decoding glyphs as bytes")
		return t
	}
	t.r = r
	return t
}

// page returns the decoders keyed by font resource name, or nil when the
// page's resources cannot be read.
func (t *fontTable) page(n int) (fonts map[string]Decoder) {
	if t.r == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			logx.Warn().Interface("panic", rec).Int("page", n).Msg("pdf font resources unreadable")
			fonts = nil
		}
	}()

	p := t.r.Page(n)
	if p.V.IsNull() {
		return nil
	}
	names := p.Fonts()
	fonts = make(map[string]Decoder, len(names))
	for _, name := range names {
		fonts[name] = p.Font(name).Encoder()
	}
	return fonts
}
