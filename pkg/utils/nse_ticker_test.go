package utils

import "testing"

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"bhel", "BHEL"},
		{"  BHEL  ", "BHEL"},
		{"$NTPC", "NTPC"},
		{"L&T", "LT"},
		{"larsen", "LT"},
		{"MTAR", "MTARTECH"},
		{"WALCHANNAG.NS", "WALCHANNAG"},
		{"UNKNOWN", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeTicker(tt.input); got != tt.expected {
				t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToYFinanceTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BHEL", "BHEL.NS"},
		{"l&t", "LT.NS"},
		{"NTPC.NS", "NTPC.NS"},
		{"LT.BO", "LT.BO"},
	}

	for _, tt := range tests {
		if got := ToYFinanceTicker(tt.input); got != tt.expected {
			t.Errorf("ToYFinanceTicker(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFromYFinanceTicker(t *testing.T) {
	if got := FromYFinanceTicker("MTARTECH.NS"); got != "MTARTECH" {
		t.Errorf("FromYFinanceTicker = %q", got)
	}
}

func TestHeadlineNames(t *testing.T) {
	names := HeadlineNames("LT.NS")
	want := map[string]bool{"LT": true, "L&T": true, "LARSEN": true}
	if len(names) != len(want) {
		t.Fatalf("HeadlineNames(LT.NS) = %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected name %q", n)
		}
	}

	if got := HeadlineNames("NTPC"); len(got) != 1 || got[0] != "NTPC" {
		t.Errorf("HeadlineNames(NTPC) = %v", got)
	}
}
