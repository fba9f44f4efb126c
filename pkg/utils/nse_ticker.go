package utils

import (
	"strings"
)

// Aliases for the strategic-industrials universe, mapped to NSE symbols.
var tickerAliases = map[string]string{
	"BHEL":          "BHEL",
	"BHARAT HEAVY":  "BHEL",
	"MTAR":          "MTARTECH",
	"MTARTECH":      "MTARTECH",
	"MTAR TECH":     "MTARTECH",
	"WALCHANDNAGAR": "WALCHANNAG",
	"WALCHANNAG":    "WALCHANNAG",
	"LT":            "LT",
	"L&T":           "LT",
	"LARSEN":        "LT",
	"NTPC":          "NTPC",
	"HAL":           "HAL",
	"BEL":           "BEL",
	"BDL":           "BDL",
}

// headlineNames lists how newsrooms usually write a symbol in a headline.
var headlineNames = map[string][]string{
	"BHEL":       {"BHARAT HEAVY ELECTRICALS"},
	"MTARTECH":   {"MTAR"},
	"WALCHANNAG": {"WALCHANDNAGAR"},
	"LT":         {"L&T", "LARSEN"},
	"HAL":        {"HINDUSTAN AERONAUTICS"},
	"BEL":        {"BHARAT ELECTRONICS"},
	"BDL":        {"BHARAT DYNAMICS"},
}

// NormalizeTicker normalizes a user-input ticker to the canonical NSE format.
// It handles aliases, uppercasing, whitespace and exchange suffixes.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")
	ticker = FromYFinanceTicker(ticker)

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ToYFinanceTicker converts an NSE ticker to Yahoo Finance format by appending .NS.
func ToYFinanceTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	if strings.HasSuffix(ticker, ".NS") || strings.HasSuffix(ticker, ".BO") {
		return ticker
	}
	return NormalizeTicker(ticker) + ".NS"
}

// FromYFinanceTicker strips the .NS or .BO suffix to get the NSE/BSE ticker.
func FromYFinanceTicker(yfTicker string) string {
	yfTicker = strings.TrimSuffix(yfTicker, ".NS")
	yfTicker = strings.TrimSuffix(yfTicker, ".BO")
	return yfTicker
}

// HeadlineNames returns the symbol plus the names it appears under in news
// headlines. For example, "LT" → ["LT", "L&T", "LARSEN"].
func HeadlineNames(ticker string) []string {
	symbol := NormalizeTicker(ticker)
	names := []string{symbol}
	return append(names, headlineNames[symbol]...)
}
