package domain

import (
	"time"

	"github.com/google/uuid"
)

// Player carries the season statistics used to price player markets.
type Player struct {
	ID             uuid.UUID `json:"id"              db:"id"`
	Name           string    `json:"name"            db:"name"`
	Team           string    `json:"team"            db:"team"`
	Goals          int       `json:"goals"           db:"goals"`
	Assists        int       `json:"assists"         db:"assists"`
	MatchesPlayed  int       `json:"matches_played"  db:"matches_played"`
	MatchesStarted int       `json:"matches_started" db:"matches_started"`
	YellowCards    int       `json:"yellow_cards"    db:"yellow_cards"`
	RedCards       int       `json:"red_cards"       db:"red_cards"`
	UpdatedAt      time.Time `json:"updated_at"      db:"updated_at"`
}

// TeamStats is a team's aggregate league record.
type TeamStats struct {
	Team         string `json:"team"          yaml:"team"`
	Points       int    `json:"points"        yaml:"points"`
	Played       int    `json:"played"        yaml:"played"`
	GoalsFor     int    `json:"goals_for"     yaml:"goals_for"`
	GoalsAgainst int    `json:"goals_against" yaml:"goals_against"`
}
