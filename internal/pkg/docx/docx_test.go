package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(b)
	}
	t.Fatalf("part %s missing", name)
	return ""
}

func TestBuilderWritesStyledParagraphs(t *testing.T) {
	b := New()
	b.Title("Graphs & <Trees>")
	b.Note("Citation style: APA")
	b.Heading("Introduction")
	b.Paragraphs("First block.\n\nSecond block\nwith a break.")

	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	doc := readPart(t, data, "word/document.xml")
	if !strings.Contains(doc, "Graphs &amp; &lt;Trees&gt;") {
		t.Fatalf("title not escaped: %s", doc)
	}
	if strings.Count(doc, `<w:pStyle w:val="Normal"/>`) != 3 {
		t.Fatalf("expected note plus two body paragraphs: %s", doc)
	}
	if !strings.Contains(doc, `<w:pStyle w:val="Heading1"/>`) || !strings.Contains(doc, "<w:br/>") {
		t.Fatalf("expected heading and line break: %s", doc)
	}
	if !strings.Contains(readPart(t, data, "[Content_Types].xml"), "wordprocessingml.document.main") {
		t.Fatalf("content types missing main part")
	}
}
