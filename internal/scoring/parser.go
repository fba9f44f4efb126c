// Package scoring extracts per-ticker verdicts from the oracle's reply and
// checks them against the action bands and the monthly budget.
package scoring

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/utils"
)

// lineRe matches "TICKER | SCORE=0.72 | ACTION=AGGRESSIVE | ALLOCATION=₹8,000".
// Markdown emphasis and list bullets around the line are tolerated.
var lineRe = regexp.MustCompile(`(?i)^[\s*\-•#>]*([A-Z0-9&.\-]+)\**\s*\|\s*SCORE\s*=\s*([0-9]*\.?[0-9]+)\s*\|\s*ACTION\s*=\s*([A-Z_]+)\s*\|\s*ALLOCATION\s*=\s*((?:(?:Rs\.?|₹|INR)\s*)?[^|\s*]+)`)

// Parse returns every well-formed verdict line in reply, in order.
func Parse(reply string) []models.ScoringResult {
	var out []models.ScoringResult
	for _, line := range strings.Split(reply, "\n") {
		m := lineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		alloc, err := utils.ParseINR(m[4])
		if err != nil {
			continue
		}
		out = append(out, models.ScoringResult{
			Ticker:     utils.NormalizeTicker(m[1]),
			Score:      score,
			Action:     models.Action(strings.ToUpper(m[3])),
			Allocation: alloc,
		})
	}
	return out
}

// Report is the outcome of validating a reply.
type Report struct {
	Results  []models.ScoringResult `json:"results"`
	Total    decimal.Decimal        `json:"total"`
	Warnings []string               `json:"warnings,omitempty"`
}

// OK reports whether no warnings were raised.
func (r Report) OK() bool { return len(r.Warnings) == 0 }

// Validate parses reply and checks each verdict. expected lists the tickers
// the payload asked for; missing ones are flagged.
func Validate(reply string, expected []string, budget decimal.Decimal) Report {
	r := Report{Results: Parse(reply), Total: decimal.Zero}

	seen := make(map[string]bool)
	for _, res := range r.Results {
		if seen[res.Ticker] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s listed more than once", res.Ticker))
		}
		seen[res.Ticker] = true

		if res.Score < 0 || res.Score > 1 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s score %.2f outside [0,1]", res.Ticker, res.Score))
		}
		if _, ok := models.ParseAction(string(res.Action)); !ok {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s has unknown action %s", res.Ticker, res.Action))
		} else if want := models.ActionForScore(res.Score); want != res.Action {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s action %s does not match score %.2f (expected %s)",
				res.Ticker, res.Action, res.Score, want))
		}
		if res.Allocation.IsNegative() {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s has negative allocation", res.Ticker))
		}
		r.Total = r.Total.Add(res.Allocation)
	}

	if len(r.Results) == 0 {
		r.Warnings = append(r.Warnings, "no verdict lines found")
		return r
	}

	var missing []string
	for _, t := range expected {
		if !seen[utils.NormalizeTicker(t)] {
			missing = append(missing, utils.NormalizeTicker(t))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		r.Warnings = append(r.Warnings, "missing verdicts for "+strings.Join(missing, ", "))
	}

	if budget.IsPositive() && r.Total.GreaterThan(budget) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("allocations total %s exceeds budget %s",
			utils.FormatINR(r.Total), utils.FormatINR(budget)))
	}
	return r
}

// Annotate appends a validation paragraph to reply when r has warnings.
func Annotate(reply string, r Report) string {
	if r.OK() {
		return reply
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(reply, "\n"))
	sb.WriteString("\n\n⚠️ Validation:")
	for _, w := range r.Warnings {
		sb.WriteString("\n- ")
		sb.WriteString(w)
	}
	return sb.String()
}
