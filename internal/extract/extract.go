// Package extract turns uploaded study material into plain prompt text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxBytes is the upload limit applied when none is configured.
const DefaultMaxBytes = 10 << 20

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrTooLarge    = errors.New("file too large")
	ErrEmpty       = errors.New("no text found")
)

// Text extracts the raw text of data, dispatching on the file extension.
// A non-positive maxBytes falls back to DefaultMaxBytes.
func Text(filename string, data []byte, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %.2fMB exceeds %dMB", ErrTooLarge,
			float64(len(data))/(1<<20), maxBytes>>20)
	}

	var (
		out string
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: not valid UTF-8", filename)
		}
		out = string(data)
	case ".docx":
		out, err = docxText(data, maxBytes)
	case ".pdf":
		out, err = pdfText(data, maxBytes)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmpty
	}
	return out, nil
}

// capReader fails with ErrTooLarge once more than n bytes have been read.
type capReader struct {
	r io.Reader
	n int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.n < 0 {
		return 0, ErrTooLarge
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	if c.n < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// markupFactor bounds document.xml relative to the text limit; WordprocessingML
// markup is several times the size of the text it carries.
const markupFactor = 8

// docxText concatenates the w:t runs of word/document.xml, one line per
// paragraph. Both the inflated XML and the extracted text are capped, so a
// small archive cannot expand past the limit.
func docxText(data []byte, maxBytes int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx: word/document.xml missing")
	}
	maxXML := maxBytes * markupFactor
	if doc.UncompressedSize64 > uint64(maxXML) {
		return "", fmt.Errorf("%w: document.xml inflates to %d bytes", ErrTooLarge, doc.UncompressedSize64)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	defer rc.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(&capReader{r: rc, n: maxXML})
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
		if int64(sb.Len()) > maxBytes {
			return "", fmt.Errorf("%w: extracted text exceeds %d bytes", ErrTooLarge, maxBytes)
		}
	}
	return sb.String(), nil
}

// pdfText reads the text layer page by page. Scanned PDFs without one
// come back empty and are reported as ErrEmpty by Text.
func pdfText(data []byte, maxBytes int64) (out string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("pdf: malformed document: %v", p)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}
	var sb strings.Builder
	fonts := map[string]*pdf.Font{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("pdf: page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
		if int64(sb.Len()) > maxBytes {
			return "", fmt.Errorf("%w: extracted text exceeds %d bytes", ErrTooLarge, maxBytes)
		}
	}
	return sb.String(), nil
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	`"`, `\"`,
	`'`, `\'`,
)

// Escape flattens text onto one line so it can be quoted inside a prompt.
func Escape(s string) string { return escaper.Replace(s) }
