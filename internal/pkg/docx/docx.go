package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	StyleTitle    = "Title"
	StyleHeading1 = "Heading1"
	StyleNormal   = "Normal"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const styles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:pPr><w:jc w:val="center"/></w:pPr><w:rPr><w:b/><w:sz w:val="40"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>
</w:styles>`

type paragraph struct {
	style  string
	text   string
	italic bool
}

// Builder accumulates paragraphs for a single-part WordprocessingML package.
type Builder struct {
	paras []paragraph
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) Title(text string) {
	b.paras = append(b.paras, paragraph{style: StyleTitle, text: text})
}

func (b *Builder) Heading(text string) {
	b.paras = append(b.paras, paragraph{style: StyleHeading1, text: text})
}

// Paragraphs adds one paragraph per blank-line separated block of text.
func (b *Builder) Paragraphs(text string) {
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			b.paras = append(b.paras, paragraph{style: StyleNormal, text: block})
		}
	}
}

func (b *Builder) Note(text string) {
	b.paras = append(b.paras, paragraph{style: StyleNormal, text: text, italic: true})
}

func (b *Builder) documentXML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	buf.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range b.paras {
		fmt.Fprintf(&buf, `<w:p><w:pPr><w:pStyle w:val="%s"/></w:pPr>`, p.style)
		for i, line := range strings.Split(p.text, "\n") {
			buf.WriteString("<w:r>")
			if p.italic {
				buf.WriteString("<w:rPr><w:i/></w:rPr>")
			}
			if i > 0 {
				buf.WriteString("<w:br/>")
			}
			buf.WriteString(`<w:t xml:space="preserve">`)
			if err := xml.EscapeText(&buf, []byte(line)); err != nil {
				return nil, fmt.Errorf("escape docx text failed: %w", err)
			}
			buf.WriteString("</w:t></w:r>")
		}
		buf.WriteString("</w:p>")
	}
	buf.WriteString(`<w:sectPr/></w:body></w:document>`)
	return buf.Bytes(), nil
}

// Bytes renders the package.
func (b *Builder) Bytes() ([]byte, error) {
	body, err := b.documentXML()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypes)},
		{"_rels/.rels", []byte(packageRels)},
		{"word/_rels/document.xml.rels", []byte(documentRels)},
		{"word/styles.xml", []byte(styles)},
		{"word/document.xml", body},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create docx part %s failed: %w", part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return nil, fmt.Errorf("write docx part %s failed: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx failed: %w", err)
	}
	return out.Bytes(), nil
}
