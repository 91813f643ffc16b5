package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketKind / Direction
// ──────────────────────────────────────────────────────────────────────────────

// MarketKind enumerates the closed set of markets the platform prices.
type MarketKind string

const (
	KindMatchWinner    MarketKind = "match_winner"
	KindDoubleChance   MarketKind = "double_chance"
	KindDrawNoBet      MarketKind = "draw_no_bet"
	KindTotalGoals     MarketKind = "total_goals"
	KindTeamGoals      MarketKind = "team_goals" // subject = team name
	KindBothTeamsScore MarketKind = "both_teams_score"
	KindPlayerGoal     MarketKind = "player_goal"   // subject = player id
	KindPlayerAssist   MarketKind = "player_assist" // subject = player id
	KindPlayerCard     MarketKind = "player_card"   // subject = card kind
	KindFirstScorer    MarketKind = "first_scorer"
	KindGoalAndAssist  MarketKind = "goal_and_assist" // subject = player id
)

// Direction is the over/under side of a line market.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionOver  Direction = "over"
	DirectionUnder Direction = "under"
)

// Card kinds used as the subject of KindPlayerCard.
const (
	CardYellow = "yellow"
	CardRed    = "red"
)

// IsValid reports whether k is a known market kind.
func (k MarketKind) IsValid() bool {
	switch k {
	case KindMatchWinner, KindDoubleChance, KindDrawNoBet, KindTotalGoals, KindTeamGoals,
		KindBothTeamsScore, KindPlayerGoal, KindPlayerAssist, KindPlayerCard,
		KindFirstScorer, KindGoalAndAssist:
		return true
	}
	return false
}

// IsPlayerMarket reports whether outcomes of this kind depend on individual
// player events rather than the final score.
func (k MarketKind) IsPlayerMarket() bool {
	switch k {
	case KindPlayerGoal, KindPlayerAssist, KindPlayerCard, KindFirstScorer, KindGoalAndAssist:
		return true
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketCategory
// ──────────────────────────────────────────────────────────────────────────────

// MarketCategory groups mutually related outcomes. It replaces free-text
// group labels: conflict detection and resolution switch on Kind and
// Direction, never on strings.
type MarketCategory struct {
	Kind      MarketKind `json:"kind"                db:"market_kind"`
	Subject   string     `json:"subject,omitempty"   db:"market_subject"`
	Direction Direction  `json:"direction,omitempty" db:"market_direction"`
}

func MatchWinner() MarketCategory    { return MarketCategory{Kind: KindMatchWinner} }
func DoubleChance() MarketCategory   { return MarketCategory{Kind: KindDoubleChance} }
func DrawNoBet() MarketCategory      { return MarketCategory{Kind: KindDrawNoBet} }
func BothTeamsScore() MarketCategory { return MarketCategory{Kind: KindBothTeamsScore} }
func FirstScorer() MarketCategory    { return MarketCategory{Kind: KindFirstScorer} }

func TotalGoals(d Direction) MarketCategory {
	return MarketCategory{Kind: KindTotalGoals, Direction: d}
}

func TeamGoals(team string, d Direction) MarketCategory {
	return MarketCategory{Kind: KindTeamGoals, Subject: team, Direction: d}
}

func PlayerGoal(playerID string) MarketCategory {
	return MarketCategory{Kind: KindPlayerGoal, Subject: playerID}
}

func PlayerAssist(playerID string) MarketCategory {
	return MarketCategory{Kind: KindPlayerAssist, Subject: playerID}
}

func PlayerCard(card string) MarketCategory {
	return MarketCategory{Kind: KindPlayerCard, Subject: card}
}

func GoalAndAssist(playerID string) MarketCategory {
	return MarketCategory{Kind: KindGoalAndAssist, Subject: playerID}
}

// Base returns the category with its direction stripped.
func (c MarketCategory) Base() MarketCategory {
	c.Direction = DirectionNone
	return c
}

// Stackable reports whether several picks of this category may share a bet.
// Player goal and assist picks can be combined freely.
func (c MarketCategory) Stackable() bool {
	return c.Kind == KindPlayerGoal || c.Kind == KindPlayerAssist
}

// ConflictsWith reports whether two outcomes of the same event with these
// categories are incompatible in one bet.
func (c MarketCategory) ConflictsWith(other MarketCategory) bool {
	if c.Base() != other.Base() {
		return false
	}
	if c.Stackable() {
		return false
	}
	if c.Direction == DirectionNone && other.Direction == DirectionNone {
		return true
	}
	return c.Direction == other.Direction
}

// Label renders the group label shown to users.
func (c MarketCategory) Label() string {
	switch c.Kind {
	case KindMatchWinner:
		return "Ganador del Partido"
	case KindDoubleChance:
		return "Doble Oportunidad"
	case KindDrawNoBet:
		return "Apuesta sin Empate"
	case KindTotalGoals:
		return "Goles" + c.Direction.labelSuffix()
	case KindTeamGoals:
		return "Goles - " + c.Subject + c.Direction.labelSuffix()
	case KindBothTeamsScore:
		return "Ambos Marcan"
	case KindPlayerGoal:
		return "Goleadores"
	case KindPlayerAssist:
		return "Asistencias"
	case KindPlayerCard:
		return "Tarjetas"
	case KindFirstScorer:
		return "Primer Goleador"
	case KindGoalAndAssist:
		return "Especiales Jugador"
	}
	return string(c.Kind)
}

func (d Direction) labelSuffix() string {
	switch d {
	case DirectionOver:
		return " - Más de"
	case DirectionUnder:
		return " - Menos de"
	}
	return ""
}

// ParseLabel maps a legacy group label onto a category. Player-bound labels
// cannot carry their subject and are rejected; operators create those
// through regeneration.
func ParseLabel(label string) (MarketCategory, error) {
	label = strings.TrimSpace(label)
	switch label {
	case "Ganador del Partido":
		return MatchWinner(), nil
	case "Doble Oportunidad":
		return DoubleChance(), nil
	case "Apuesta sin Empate":
		return DrawNoBet(), nil
	case "Ambos Marcan":
		return BothTeamsScore(), nil
	case "Primer Goleador":
		return FirstScorer(), nil
	case "Goles - Más de":
		return TotalGoals(DirectionOver), nil
	case "Goles - Menos de":
		return TotalGoals(DirectionUnder), nil
	}
	if rest, ok := strings.CutPrefix(label, "Goles - "); ok {
		if team, ok := strings.CutSuffix(rest, " - Más de"); ok && team != "" {
			return TeamGoals(team, DirectionOver), nil
		}
		if team, ok := strings.CutSuffix(rest, " - Menos de"); ok && team != "" {
			return TeamGoals(team, DirectionUnder), nil
		}
	}
	return MarketCategory{}, fmt.Errorf("%w: unknown market group %q", ErrValidation, label)
}

// Scan implements sql.Scanner for the direction column (NULL = none).
func (d *Direction) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = DirectionNone
	case string:
		*d = Direction(v)
	case []byte:
		*d = Direction(v)
	default:
		return fmt.Errorf("domain.Direction: cannot scan %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Direction) Value() (driver.Value, error) {
	if d == DirectionNone {
		return nil, nil
	}
	return string(d), nil
}
