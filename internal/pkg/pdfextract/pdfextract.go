package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxUploadBytes caps how much of an upload is buffered for parsing.
const MaxUploadBytes = 20 << 20

var (
	ErrEmpty    = errors.New("pdf is empty")
	ErrTooLarge = errors.New("pdf exceeds upload limit")
)

// Document is the text recovered from a paper PDF. Title is the first
// non-empty line; Body holds the remaining lines joined by single spaces.
type Document struct {
	Title string
	Body  string
}

// Extract parses a PDF and splits its plain text into a title and a body.
func Extract(r io.Reader) (*Document, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf failed: %w", err)
	}
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	if len(b) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return nil, fmt.Errorf("read pdf text failed: %w", err)
	}
	return split(string(out)), nil
}

func split(text string) *Document {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	doc := &Document{}
	if len(lines) == 0 {
		return doc
	}
	doc.Title = lines[0]
	doc.Body = strings.Join(lines[1:], " ")
	return doc
}
