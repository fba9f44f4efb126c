package models

import "github.com/shopspring/decimal"

// Action is the SIP deployment decision for one ticker.
type Action string

const (
	ActionAggressive Action = "AGGRESSIVE"
	ActionNormal     Action = "NORMAL"
	ActionPause      Action = "PAUSE"
	ActionNoSIP      Action = "NO_SIP"
)

// Actions lists every action from most to least capital deployed.
var Actions = []Action{ActionAggressive, ActionNormal, ActionPause, ActionNoSIP}

// Band is a half-open score range [Min, Max) mapped to an action.
type Band struct {
	Action Action  `json:"action"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// DefaultBands are the fixed action bands used in the scoring prompt.
var DefaultBands = []Band{
	{Action: ActionAggressive, Min: 0.7, Max: 1.0},
	{Action: ActionNormal, Min: 0.5, Max: 0.7},
	{Action: ActionPause, Min: 0.3, Max: 0.5},
	{Action: ActionNoSIP, Min: 0.0, Max: 0.3},
}

// ActionForScore maps a score in [0,1] to its band. The top band includes 1.0.
func ActionForScore(score float64) Action {
	switch {
	case score >= 0.7:
		return ActionAggressive
	case score >= 0.5:
		return ActionNormal
	case score >= 0.3:
		return ActionPause
	default:
		return ActionNoSIP
	}
}

// ParseAction converts a string to an Action. ok is false for unknown values.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ScoringResult is the oracle's per-ticker verdict, parsed from its reply.
type ScoringResult struct {
	Ticker     string          `json:"ticker"`
	Score      float64         `json:"score"`
	Action     Action          `json:"action"`
	Allocation decimal.Decimal `json:"allocation"`
}

// MessageChunk is one transport-sized slice of a report.
type MessageChunk struct {
	Index int    `json:"index"` // 1-based
	Total int    `json:"total"`
	Body  string `json:"body"`
}
