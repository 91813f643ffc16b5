package feed_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/feed"
	"github.com/redis/go-redis/v9"
)

const sample = `
standings:
  - team: Leones
    points: 30
    played: 12
    goals_for: 25
    goals_against: 10
  - team: Halcones
    points: 9
    played: 12
    goals_for: 8
    goals_against: 22
squads:
  Leones:
    - name: Goleador
      goals: 7
      matches_played: 12
      matches_started: 11
      yellow_cards: 2
fixtures:
  - home: Leones
    away: Halcones
    starts_at: 2026-11-01T18:00:00Z
  - home: Halcones
    away: Leones
    starts_at: 2026-10-01T18:00:00Z
    home_goals: 0
    away_goals: 2
`

func TestParse(t *testing.T) {
	s, err := feed.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	lions, err := s.Team("leones")
	if err != nil {
		t.Fatalf("Team: %v", err)
	}
	if lions.Points != 30 || lions.GoalsFor != 25 {
		t.Errorf("Leones = %+v", lions)
	}
	if _, err := s.Team("Tigres"); !errors.Is(err, feed.ErrTeamUnknown) {
		t.Errorf("unknown team: err = %v, want ErrTeamUnknown", err)
	}

	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	players := s.Players("LEONES", now)
	if len(players) != 1 || players[0].Name != "Goleador" || players[0].Team != "Leones" || players[0].Goals != 7 {
		t.Fatalf("players = %+v", players)
	}
	if !players[0].UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %s, want %s", players[0].UpdatedAt, now)
	}
	if got := s.Players("Halcones", now); len(got) != 0 {
		t.Errorf("Halcones has no squad, got %d players", len(got))
	}

	if _, ok := s.Fixtures[0].Final(); ok {
		t.Error("unplayed fixture reported a final score")
	}
	score, ok := s.Fixtures[1].Final()
	if !ok || score.Home != 0 || score.Away != 2 {
		t.Errorf("final = %v %v, want 0-2", score, ok)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := feed.Parse([]byte("standings: [")); err == nil {
		t.Error("Parse accepted malformed YAML")
	}
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := feed.FileProvider{Path: path}.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(s.Standings) != 2 || len(s.Fixtures) != 2 {
		t.Errorf("snapshot = %+v", s)
	}

	if _, err := (feed.FileProvider{Path: filepath.Join(t.TempDir(), "missing.yaml")}).Snapshot(context.Background()); err == nil {
		t.Error("missing file did not error")
	}
}

func TestCachedProvider_FallsThroughWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	s, err := feed.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	c := feed.NewCachedProvider(feed.Static{S: s}, rdb, time.Minute, nil)
	got, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got != s {
		t.Error("expected the source snapshot when the cache is unreachable")
	}

	c = feed.NewCachedProvider(feed.Static{}, rdb, time.Minute, nil)
	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Error("source failure was hidden by the cache")
	}
}
