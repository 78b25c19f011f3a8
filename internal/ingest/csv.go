package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"inr-trade-matcher/internal/logger"
)

// Read picks a reader by file extension. Anything that is not HTML is read
// as CSV.
func Read(ctx context.Context, r io.Reader, name string) ([][]any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return ReadHTML(ctx, r)
	default:
		return ReadCSV(ctx, r)
	}
}

func ReadCSV(ctx context.Context, r io.Reader) ([][]any, error) {
	br := bufio.NewReader(r)
	// Spreadsheet tools prepend a UTF-8 BOM.
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		records = append(records, rec)
	}

	rows, err := Shape(records)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "CSV parsed", "records", len(records), "rows", len(rows))
	return rows, nil
}
