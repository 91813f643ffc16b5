// Package feed supplies league statistics, squads and fixtures to the
// engine. The engine only depends on Provider; sources may fail and callers
// degrade gracefully.
package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrTeamUnknown is returned when a team is absent from the standings.
var ErrTeamUnknown = errors.New("feed: team not in standings")

// PlayerStats is a player's season line as published by the feed.
type PlayerStats struct {
	Name           string `yaml:"name"            json:"name"`
	Goals          int    `yaml:"goals"           json:"goals"`
	Assists        int    `yaml:"assists"         json:"assists"`
	MatchesPlayed  int    `yaml:"matches_played"  json:"matches_played"`
	MatchesStarted int    `yaml:"matches_started" json:"matches_started"`
	YellowCards    int    `yaml:"yellow_cards"    json:"yellow_cards"`
	RedCards       int    `yaml:"red_cards"       json:"red_cards"`
}

// Fixture is a scheduled or played match. Goals are set once it is final.
type Fixture struct {
	Home      string    `yaml:"home"       json:"home"`
	Away      string    `yaml:"away"       json:"away"`
	StartsAt  time.Time `yaml:"starts_at"  json:"starts_at"`
	HomeGoals *int      `yaml:"home_goals" json:"home_goals,omitempty"`
	AwayGoals *int      `yaml:"away_goals" json:"away_goals,omitempty"`
}

// Final reports the fixture's score when both sides are recorded.
func (f Fixture) Final() (domain.Score, bool) {
	if f.HomeGoals == nil || f.AwayGoals == nil {
		return domain.Score{}, false
	}
	return domain.Score{Home: *f.HomeGoals, Away: *f.AwayGoals}, true
}

// Snapshot is one complete read of the feed.
type Snapshot struct {
	Standings []domain.TeamStats       `yaml:"standings" json:"standings"`
	Squads    map[string][]PlayerStats `yaml:"squads"    json:"squads"`
	Fixtures  []Fixture                `yaml:"fixtures"  json:"fixtures"`
}

// Team looks up a team's record, case-insensitively.
func (s *Snapshot) Team(name string) (domain.TeamStats, error) {
	for _, t := range s.Standings {
		if strings.EqualFold(t.Team, name) {
			return t, nil
		}
	}
	return domain.TeamStats{}, fmt.Errorf("%w: %q", ErrTeamUnknown, name)
}

// Players converts a squad into domain players (without ids).
func (s *Snapshot) Players(team string, now time.Time) []*domain.Player {
	var out []*domain.Player
	for name, squad := range s.Squads {
		if !strings.EqualFold(name, team) {
			continue
		}
		for _, p := range squad {
			out = append(out, &domain.Player{
				Name:           p.Name,
				Team:           name,
				Goals:          p.Goals,
				Assists:        p.Assists,
				MatchesPlayed:  p.MatchesPlayed,
				MatchesStarted: p.MatchesStarted,
				YellowCards:    p.YellowCards,
				RedCards:       p.RedCards,
				UpdatedAt:      now,
			})
		}
	}
	return out
}

// Provider returns the current snapshot.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// FileProvider
// ──────────────────────────────────────────────────────────────────────────────

// FileProvider reads a YAML snapshot from disk on every call.
type FileProvider struct {
	Path string
}

// Snapshot parses the file.
func (p FileProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("feed.FileProvider: read %s: %w", p.Path, err)
	}
	return Parse(b)
}

// Parse decodes a YAML snapshot.
func Parse(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("feed: parse: %w", err)
	}
	return &s, nil
}

// Static serves a fixed snapshot. A nil S yields an error.
type Static struct {
	S *Snapshot
}

func (p Static) Snapshot(context.Context) (*Snapshot, error) {
	if p.S == nil {
		return nil, errors.New("feed: no snapshot")
	}
	return p.S, nil
}
