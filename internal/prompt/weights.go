package prompt

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when the scoring weights do not sum to 1.
var ErrInvalidWeights = errors.New("prompt: scoring weights must be non-negative and sum to 1")

// Weights is the scoring-model weight vector. Fractions, not percentages.
type Weights struct {
	Trend        float64 `json:"trend" mapstructure:"trend" yaml:"trend"`
	News         float64 `json:"news" mapstructure:"news" yaml:"news"`
	Fundamentals float64 `json:"fundamentals" mapstructure:"fundamentals" yaml:"fundamentals"`
}

// Named weight presets.
const (
	PresetBalanced = "balanced"
	PresetMomentum = "momentum"
	PresetCustom   = "custom" // weights supplied by config
)

// DefaultWeights is the balanced 30/20/50 scheme.
var DefaultWeights = Weights{Trend: 0.30, News: 0.20, Fundamentals: 0.50}

// MomentumWeights leans on trend and news: 40/30/30.
var MomentumWeights = Weights{Trend: 0.40, News: 0.30, Fundamentals: 0.30}

// Preset returns the weights registered under name.
func Preset(name string) (Weights, error) {
	switch name {
	case "", PresetBalanced:
		return DefaultWeights, nil
	case PresetMomentum:
		return MomentumWeights, nil
	default:
		return Weights{}, fmt.Errorf("prompt: unknown weights preset %q", name)
	}
}

// Validate checks the weights form a convex combination.
func (w Weights) Validate() error {
	if w.Trend < 0 || w.News < 0 || w.Fundamentals < 0 {
		return fmt.Errorf("%w: negative component in %+v", ErrInvalidWeights, w)
	}
	if sum := w.Trend + w.News + w.Fundamentals; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: sum is %.4f", ErrInvalidWeights, sum)
	}
	return nil
}

// String renders the weights as percentages, e.g. "30/20/50".
func (w Weights) String() string {
	return fmt.Sprintf("%s/%s/%s", pct(w.Trend), pct(w.News), pct(w.Fundamentals))
}

func pct(v float64) string {
	return fmt.Sprintf("%g", math.Round(v*1000)/10)
}
