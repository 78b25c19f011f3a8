package types

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy selects the matching engine.
type Strategy int

const (
	StrategyAggregate Strategy = iota + 1
	StrategyDailyProportional
	StrategyFIFO
	StrategyChronologicalFIFO
)

func (s Strategy) String() string {
	switch s {
	case StrategyAggregate:
		return "aggregate"
	case StrategyDailyProportional:
		return "daily"
	case StrategyFIFO:
		return "fifo"
	case StrategyChronologicalFIFO:
		return "chronological"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts the names used in config files and on the command line.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "aggregate", "simple":
		return StrategyAggregate, nil
	case "daily", "proportional", "daily_proportional":
		return StrategyDailyProportional, nil
	case "fifo":
		return StrategyFIFO, nil
	case "chronological", "chrono", "chronological_fifo":
		return StrategyChronologicalFIFO, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// BuyWindow decides which buys the daily proportional matcher averages.
type BuyWindow string

const (
	// BuyWindowCumulative uses every buy up to the end of the sell day.
	BuyWindowCumulative BuyWindow = "cumulative"
	// BuyWindowSameDay uses only buys on the sell day.
	BuyWindowSameDay BuyWindow = "sameDay"
)

// AggregateDateKey keys the aggregate matcher's date-less summaries.
const AggregateDateKey = "ALL"

// MatchResult is the output of one matching pass.
type MatchResult struct {
	Strategy  Strategy   `json:"-"`
	Summaries SummaryMap `json:"summaries"`
	Skipped   SummaryMap `json:"skipped"`
	// OpenLots holds unconsumed inventory per asset for FIFO strategies.
	OpenLots map[string][]FIFOLot `json:"open_lots,omitempty"`
}

func NewMatchResult(s Strategy) *MatchResult {
	return &MatchResult{
		Strategy:  s,
		Summaries: SummaryMap{},
		Skipped:   SummaryMap{},
	}
}

// DateKeys returns the sorted union of summary and skipped date keys.
func (r *MatchResult) DateKeys() []string {
	seen := map[string]struct{}{}
	for k := range r.Summaries {
		seen[k] = struct{}{}
	}
	for k := range r.Skipped {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
