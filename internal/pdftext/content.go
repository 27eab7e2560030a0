package pdftext

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// kerning adjustments in a TJ array beyond this (in thousandths of an em)
// are rendered as a word gap
const tjSpaceThreshold = -200

type tokenKind int

const (
	tokString tokenKind = iota
	tokText
	tokNumber
	tokName
	tokOperator
	tokArrayStart
	tokArrayEnd
	tokDictStart
	tokDictEnd
)

// token text holds raw string bytes for tokString and decoded text for tokText.
type token struct {
	kind tokenKind
	text string
	num  float64
}

// Decoder maps the glyph codes of a shown string to text for one font.
type Decoder interface {
	Decode(raw string) string
}

// ScanContent extracts the strings drawn by text-showing operators (Tj, TJ,
// ' and ") from a decoded page content stream. T*, Td, TD and ET end a line.
// fonts maps resource names selected by Tf to their decoders. Strings shown
// in an unknown font are mapped byte-for-byte, or as UTF-16 when they carry
// a byte order mark.
func ScanContent(content []byte, fonts map[string]Decoder) string {
	lx := &lexer{src: content}
	var (
		out      strings.Builder
		operands []token
		array    []token
		inArray  bool
		dictLvl  int
		font     Decoder
	)

	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}
	lastString := func() (string, bool) {
		for i := len(operands) - 1; i >= 0; i-- {
			switch operands[i].kind {
			case tokText:
				return operands[i].text, true
			case tokString:
				return decodeShown(operands[i].text, font), true
			}
		}
		return "", false
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokDictStart:
			dictLvl++
			continue
		case tokDictEnd:
			if dictLvl > 0 {
				dictLvl--
			}
			continue
		}
		if dictLvl > 0 {
			continue
		}

		switch tok.kind {
		case tokArrayStart:
			inArray = true
			array = array[:0]
		case tokArrayEnd:
			if inArray {
				var b strings.Builder
				for _, el := range array {
					switch el.kind {
					case tokString:
						b.WriteString(decodeShown(el.text, font))
					case tokNumber:
						if el.num <= tjSpaceThreshold {
							b.WriteByte(' ')
						}
					}
				}
				operands = append(operands, token{kind: tokText, text: b.String()})
				inArray = false
			}
		case tokOperator:
			if inArray {
				continue
			}
			switch tok.text {
			case "Tj", "\"":
				if s, ok := lastString(); ok {
					out.WriteString(s)
				}
			case "'":
				newline()
				if s, ok := lastString(); ok {
					out.WriteString(s)
				}
			case "TJ":
				if s, ok := lastString(); ok {
					out.WriteString(s)
				}
			case "T*", "Td", "TD", "ET":
				newline()
			case "Tf":
				font = nil
				for _, op := range operands {
					if op.kind == tokName {
						font = fonts[op.text]
					}
				}
			case "ID":
				lx.skipInlineImage()
			}
			operands = operands[:0]
		default:
			if inArray {
				array = append(array, tok)
			} else {
				operands = append(operands, tok)
			}
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

type lexer struct {
	src []byte
	pos int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, text: string(l.literal())}, true
		case c == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokDictStart}, true
			}
			l.pos++
			return token{kind: tokString, text: string(l.hex())}, true
		case c == '>':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
				l.pos += 2
				return token{kind: tokDictEnd}, true
			}
			l.pos++
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '{' || c == '}':
			l.pos++
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.word()}, true
		default:
			w := l.word()
			if w == "" {
				l.pos++
				continue
			}
			if f, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, text: w, num: f}, true
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isWhite(l.src[l.pos]) && !isDelim(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// literal reads a (string) body after the opening parenthesis.
func (l *lexer) literal() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.src) {
				return out
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
						v = v*8 + int(l.src[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <hex string> body after the opening angle bracket.
func (l *lexer) hex() []byte {
	var digits []byte
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		c := l.src[l.pos]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, _ := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		out = append(out, byte(v))
	}
	return out
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// skipInlineImage advances past binary inline image data up to the EI operator.
func (l *lexer) skipInlineImage() {
	for l.pos+2 < len(l.src) {
		if isWhite(l.src[l.pos]) && l.src[l.pos+1] == 'E' && l.src[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.src) || isWhite(l.src[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
}

func decodeShown(raw string, font Decoder) string {
	if font != nil {
		if s := font.Decode(raw); utf8.ValidString(s) {
			return s
		}
	}
	return decodeText([]byte(raw))
}

func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
