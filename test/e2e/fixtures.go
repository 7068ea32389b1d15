package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions are the knowledge file types written by WriteKnowledgeFile.
// PDF is covered by internal/extract tests; a minimal PDF with extractable text is not generated here.
var SupportedFileExtensions = []string{".txt", ".md", ".docx", ".xlsx"}

// WriteKnowledgeFile returns the bytes of doc encoded as a file of the given extension.
func WriteKnowledgeFile(ext string, doc KnowledgeDoc) ([]byte, error) {
	switch ext {
	case ".txt", ".md":
		return []byte(doc.Text()), nil
	case ".docx":
		return knowledgeDocx(doc.Text())
	case ".xlsx":
		return knowledgeXlsx(doc)
	default:
		return nil, fmt.Errorf("unsupported fixture extension %q", ext)
	}
}

// knowledgeDocx writes one paragraph per line of text.
func knowledgeDocx(text string) ([]byte, error) {
	var body strings.Builder
	for _, line := range strings.Split(text, "\n") {
		body.WriteString(`<w:p><w:r><w:t>` + html.EscapeString(line) + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`
	if _, err := fw.Write([]byte(doc)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// knowledgeXlsx writes one sheet per section, named after the section title.
func knowledgeXlsx(doc KnowledgeDoc) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range doc.Sections {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Title); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.Title); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(s.Title, "A1", s.Body); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
