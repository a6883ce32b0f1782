package models

import (
	"encoding/json"
	"fmt"
)

// Outcome is the final decision that resolves a negotiation.
type Outcome int

const (
	// OutcomeUnknown stands for a decision key this client does not recognize.
	OutcomeUnknown Outcome = iota
	OutcomeStopAnnexation
	OutcomeProceedAnnexation
	OutcomeAccept
	OutcomeRefuse
	OutcomeDeclareAll
)

var outcomeKeys = map[Outcome]string{
	OutcomeUnknown:           "unknown",
	OutcomeStopAnnexation:    "stop_annexation",
	OutcomeProceedAnnexation: "proceed_annexation",
	OutcomeAccept:            "accept",
	OutcomeRefuse:            "refuse",
	OutcomeDeclareAll:        "declare_all",
}

// ParseOutcome maps a wire key to an Outcome.
func ParseOutcome(key string) (Outcome, error) {
	for o, k := range outcomeKeys {
		if k == key && o != OutcomeUnknown {
			return o, nil
		}
	}
	return OutcomeUnknown, fmt.Errorf("unknown outcome %q", key)
}

// Key returns the wire key of the outcome.
func (o Outcome) Key() string {
	if k, ok := outcomeKeys[o]; ok {
		return k
	}
	return outcomeKeys[OutcomeUnknown]
}

func (o Outcome) String() string {
	return o.Key()
}

// DisplayText returns the player-facing description of the outcome. The event
// type disambiguates "refuse", which is shared by irrigation and hidden land.
func (o Outcome) DisplayText(event EventType) string {
	switch o {
	case OutcomeStopAnnexation:
		return "地主同意停止兼并"
	case OutcomeProceedAnnexation:
		return "地主执意继续兼并"
	case OutcomeAccept:
		return "地主同意出资"
	case OutcomeRefuse:
		if event == EventTypeHiddenLand {
			return "地主拒不申报，官府强制清丈"
		}
		return "地主拒绝出资"
	case OutcomeDeclareAll:
		return "地主如实申报隐匿土地"
	case OutcomeUnknown:
		return "谈判已结束"
	default:
		panic(fmt.Sprintf("models: unhandled outcome %d", int(o)))
	}
}

// MarshalJSON encodes the outcome as its wire key.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Key())
}

// UnmarshalJSON decodes a wire key. Unrecognized keys decode to OutcomeUnknown
// so a resolution is never lost because of a new decision kind.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var key string
	if err := json.Unmarshal(data, &key); err != nil {
		return fmt.Errorf("failed to decode outcome: %w", err)
	}
	parsed, err := ParseOutcome(key)
	if err != nil {
		*o = OutcomeUnknown
		return nil
	}
	*o = parsed
	return nil
}
