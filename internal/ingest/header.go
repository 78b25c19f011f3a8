// Package ingest reads exported trade histories (CSV or HTML tables) into the
// raw row arrays the normalizer consumes.
package ingest

import (
	"errors"
	"strings"
)

// ErrNoRows is returned when a file yields no data rows.
var ErrNoRows = errors.New("no trade rows found")

// headerScanRows is how far down the file the header row may sit; exchange
// exports often start with account details.
const headerScanRows = 10

type role int

const (
	rolePair role = iota
	roleDate
	roleSide
	rolePrice
	roleQuantity
	roleTotal
	roleTDS
	roleCount
)

// target is where each role lands in the normalizer's row contract.
var target = [roleCount]int{
	rolePair:     0,
	roleDate:     2,
	roleSide:     3,
	rolePrice:    4,
	roleQuantity: 5,
	roleTotal:    6,
	roleTDS:      7,
}

const rowWidth = 8

// matchers are tried in order so "Total Price" is a total, not a price.
var matchers = []struct {
	role  role
	words []string
}{
	{roleTDS, []string{"tds"}},
	{roleTotal, []string{"total"}},
	{roleDate, []string{"date", "time"}},
	{rolePair, []string{"pair", "symbol", "market"}},
	{roleSide, []string{"side"}},
	{rolePrice, []string{"price"}},
	{roleQuantity, []string{"quantity", "qty"}},
}

// columns maps roles to source column indexes, -1 when absent.
type columns [roleCount]int

func classify(cell string) (role, bool) {
	c := strings.ToLower(strings.TrimSpace(cell))
	if c == "" {
		return 0, false
	}
	for _, m := range matchers {
		for _, w := range m.words {
			if strings.Contains(c, w) {
				return m.role, true
			}
		}
	}
	return 0, false
}

// detectHeader looks for a row naming at least the pair, side, price and
// quantity columns.
func detectHeader(records [][]string) (int, columns, bool) {
	limit := min(len(records), headerScanRows)
	for i := 0; i < limit; i++ {
		var cols columns
		for r := range cols {
			cols[r] = -1
		}
		for j, cell := range records[i] {
			r, ok := classify(cell)
			if ok && cols[r] < 0 {
				cols[r] = j
			}
		}
		if cols[rolePair] >= 0 && cols[roleSide] >= 0 && cols[rolePrice] >= 0 && cols[roleQuantity] >= 0 {
			return i, cols, true
		}
	}
	return -1, columns{}, false
}

// Shape turns string records into normalizer rows. With a recognised header
// the columns are reordered into the row contract; without one the records
// are assumed to already follow it.
func Shape(records [][]string) ([][]any, error) {
	start, cols, ok := detectHeader(records)
	var out [][]any
	if ok {
		for _, rec := range records[start+1:] {
			if blank(rec) {
				continue
			}
			row := make([]any, rowWidth)
			for i := range row {
				row[i] = ""
			}
			for r, idx := range cols {
				if idx >= 0 && idx < len(rec) {
					row[target[r]] = strings.TrimSpace(rec[idx])
				}
			}
			out = append(out, row)
		}
	} else {
		for _, rec := range records {
			if blank(rec) {
				continue
			}
			row := make([]any, len(rec))
			for i, v := range rec {
				row[i] = strings.TrimSpace(v)
			}
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
