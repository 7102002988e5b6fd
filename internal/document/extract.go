package document

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/gopherchat/gopherchat/internal/common"
)

const csvRowLimit = 1000

// ExtractText pulls plain text out of an uploaded file, dispatching on the
// filename extension. Unknown extensions are rejected, unreadable files of a
// known type come back as validation errors.
func ExtractText(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return extractPDF(data)
	case ".doc", ".docx":
		return extractDocx(data)
	case ".csv":
		return extractCSV(data)
	default:
		return "", fmt.Errorf("%w: %q (supported: pdf, doc, docx, csv)", common.ErrUnsupportedFormat, ext)
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable pdf: %v", common.ErrValidation, err)
	}
	body, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: unreadable pdf: %v", common.ErrValidation, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("%w: unreadable pdf: %v", common.ErrValidation, err)
	}
	return buf.String(), nil
}

// extractDocx walks word/document.xml collecting the text runs. Paragraph ends
// become blank lines so chunking can break on them.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable word document: %v", common.ErrValidation, err)
	}

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: unreadable word document: %v", common.ErrValidation, err)
			}
			doc = rc
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: word/document.xml missing from archive", common.ErrValidation)
	}
	defer doc.Close()

	dec := xml.NewDecoder(doc)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: unreadable word document: %v", common.ErrValidation, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var run string
				if err := dec.DecodeElement(&run, &t); err != nil {
					return "", fmt.Errorf("%w: unreadable word document: %v", common.ErrValidation, err)
				}
				b.WriteString(run)
			case "br", "tab":
				b.WriteString(" ")
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteString("\n\n")
			}
		}
	}
	return b.String(), nil
}

// extractCSV renders the sheet as one "Headers" line plus one line per row so
// column values stay associated with their position.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: unreadable csv: %v", common.ErrValidation, err)
	}
	if len(records) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Headers: " + strings.Join(records[0], " | ") + "\n")
	rows := records[1:]
	for i, row := range rows {
		if i == csvRowLimit {
			fmt.Fprintf(&b, "... (%d more rows)\n", len(rows)-csvRowLimit)
			break
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, strings.Join(row, " | "))
	}
	return b.String(), nil
}
