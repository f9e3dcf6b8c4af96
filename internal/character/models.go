package character

import (
	"encoding/json"
	"time"
)

type Player struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Banned     bool      `json:"banned"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type Character struct {
	ID         int64           `json:"id"`
	PlayerID   int64           `json:"player_id"`
	Name       string          `json:"name"`
	Class      string          `json:"class"`
	Level      int             `json:"level"`
	Experience int64           `json:"experience"`
	StatPoints int             `json:"stat_points"`
	Strength   int             `json:"strength"`
	Dexterity  int             `json:"dexterity"`
	Intellect  int             `json:"intellect"`
	Vitality   int             `json:"vitality"`
	HP         float64         `json:"hp"`
	MP         float64         `json:"mp"`
	ZoneID     string          `json:"zone_id"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Z          float64         `json:"z"`
	Inventory  json.RawMessage `json:"inventory,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type NewCharacter struct {
	PlayerID  int64
	Name      string
	Class     string
	Strength  int
	Dexterity int
	Intellect int
	Vitality  int
	HP        float64
	MP        float64
	ZoneID    string
	X, Y, Z   float64
}

// CharacterUpdate is a partial save. Nil fields are left untouched.
type CharacterUpdate struct {
	ZoneID     *string
	X, Y, Z    *float64
	Level      *int
	Experience *int64
	StatPoints *int
	Strength   *int
	Dexterity  *int
	Intellect  *int
	Vitality   *int
	HP         *float64
	MP         *float64
	Inventory  json.RawMessage
}

// State is everything gameplay changes on a character.
type State struct {
	ZoneID     string          `json:"zone_id"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Z          float64         `json:"z"`
	Level      int             `json:"level"`
	Experience int64           `json:"experience"`
	StatPoints int             `json:"stat_points"`
	Strength   int             `json:"strength"`
	Dexterity  int             `json:"dexterity"`
	Intellect  int             `json:"intellect"`
	Vitality   int             `json:"vitality"`
	HP         float64         `json:"hp"`
	MP         float64         `json:"mp"`
	Inventory  json.RawMessage `json:"inventory,omitempty"`
}

// Update converts a full state into an update touching every field.
func (s State) Update() CharacterUpdate {
	return CharacterUpdate{
		ZoneID:     &s.ZoneID,
		X:          &s.X,
		Y:          &s.Y,
		Z:          &s.Z,
		Level:      &s.Level,
		Experience: &s.Experience,
		StatPoints: &s.StatPoints,
		Strength:   &s.Strength,
		Dexterity:  &s.Dexterity,
		Intellect:  &s.Intellect,
		Vitality:   &s.Vitality,
		HP:         &s.HP,
		MP:         &s.MP,
		Inventory:  s.Inventory,
	}
}

type BatchEntry struct {
	CharacterID int64
	State       State
}
