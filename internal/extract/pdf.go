package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"learntracker/internal/domain"
)

const maxTitleRunes = 60

var ErrNoPDFText = errors.New("no extractable text in PDF")

// ReadPDF extracts the plain text of a PDF file into a pdf-text item titled
// by the file name.
func ReadPDF(path string) (item domain.InputItem, err error) {
	item = domain.InputItem{
		Kind:       domain.KindPDFText,
		TitleHint:  truncateRunes(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), maxTitleRunes),
		SourceHint: "PDF",
		Origin:     path,
	}

	// The PDF reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read PDF: %v", r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return item, fmt.Errorf("open PDF: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	plain, err := reader.GetPlainText()
	if err != nil {
		return item, fmt.Errorf("get plain text: %w", err)
	}

	var buf bytes.Buffer
	if _, err = buf.ReadFrom(plain); err != nil {
		return item, fmt.Errorf("read plain text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return item, ErrNoPDFText
	}

	item.RawText = text
	item.Identity = TextIdentity(text)

	return item, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:limit]))
}
