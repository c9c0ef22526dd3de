package domain

import "time"

// Team belongs to exactly one division+subdivision. The win/loss/points
// aggregates are mutated only when a match completes.
type Team struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Division    int            `json:"division"`
	Subdivision string         `json:"subdivision"`
	Wins        int            `json:"wins"`
	Losses      int            `json:"losses"`
	Points      int            `json:"points"`
	Camaraderie float64        `json:"camaraderie"` // 0..100, lifts event odds slightly
	Atmosphere  float64        `json:"atmosphere"`  // home stadium crowd factor, 0..100
	CreatedAt   time.Time      `json:"created_at"`
	Roster      []Player       `json:"roster,omitempty"` // populated when fetched with players
	Modifiers   []TeamModifier `json:"modifiers,omitempty"`
}

// Modifier kinds. Equipment and staff effects persist between matches;
// consumables are spent when a match they were loaded for kicks off.
const (
	ModifierEquipment  = "equipment"
	ModifierConsumable = "consumable"
	ModifierStaff      = "staff"
)

// TeamModifier is an equipment, consumable, or staff effect that shifts a
// team's event odds. Value adds directly to the side's match modifier and
// is read once at kickoff, never mid-match.
type TeamModifier struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// StandingsEntry is a team's row in the subdivision table.
type StandingsEntry struct {
	Rank        int    `json:"rank"`
	TeamID      int64  `json:"team_id"`
	Name        string `json:"name"`
	Division    int    `json:"division"`
	Subdivision string `json:"subdivision"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Points      int    `json:"points"`
}
