package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"inr-trade-matcher/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// ReadHTML reads the first table of an HTML export that carries a trade
// header, or the first table when none does.
func ReadHTML(ctx context.Context, r io.Reader) ([][]any, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var tables [][][]string
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		tables = append(tables, tableRecords(s))
	})
	return pickTable(ctx, tables)
}

// Scrape fetches an HTML statement from an http(s) URL or a local path and
// reads its trade table.
func Scrape(ctx context.Context, uri string) ([][]any, error) {
	link, err := toURL(uri)
	if err != nil {
		return nil, err
	}

	t := &http.Transport{}
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(t)

	var tables [][][]string
	c.OnHTML("table", func(e *colly.HTMLElement) {
		tables = append(tables, tableRecords(e.DOM))
	})
	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	logger.Debug(ctx, "Fetching statement", "url", link)
	if err := c.Visit(link); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}
	return pickTable(ctx, tables)
}

func toURL(uri string) (string, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") || strings.HasPrefix(uri, "file://") {
		return uri, nil
	}
	abs, err := filepath.Abs(uri)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func tableRecords(table *goquery.Selection) [][]string {
	var records [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var rec []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			rec = append(rec, strings.TrimSpace(cell.Text()))
		})
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})
	return records
}

func pickTable(ctx context.Context, tables [][][]string) ([][]any, error) {
	if len(tables) == 0 {
		return nil, ErrNoRows
	}
	chosen := tables[0]
	for _, t := range tables {
		if _, _, ok := detectHeader(t); ok {
			chosen = t
			break
		}
	}
	logger.Debug(ctx, "HTML table selected", "tables", len(tables), "records", len(chosen))
	return Shape(chosen)
}
