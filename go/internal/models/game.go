package models

import "encoding/json"

// MaxSeason is the last playable month of a three-year term.
const MaxSeason = 36

// GameSnapshot is the authoritative game/county state as served by the engine.
// County data stays opaque to this client; views render it.
type GameSnapshot struct {
	ID            ID              `json:"id"`
	CurrentSeason int             `json:"current_season"`
	CountyData    json.RawMessage `json:"county_data,omitempty"`
}

// GameOver reports whether the term has ended.
func (g *GameSnapshot) GameOver() bool {
	return g.CurrentSeason > MaxSeason
}

// AdvanceReport is the settlement report returned by a turn advance.
type AdvanceReport struct {
	Season   int             `json:"season"`
	GameOver bool            `json:"game_over"`
	Raw      json.RawMessage `json:"-"`
}
