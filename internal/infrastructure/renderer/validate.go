package renderer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// validatePDF parses data and requires at least one page.
func validatePDF(data []byte) (err error) {
	if len(data) == 0 {
		return errors.New("empty document")
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}
	if reader.NumPage() < 1 {
		return errors.New("pdf has no pages")
	}
	return nil
}
