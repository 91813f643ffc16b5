// Package odds turns probability estimates and statistical rates into priced
// decimal quotes with a house margin.
package odds

import (
	"math"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────────────────────────────────

// Config holds the pricing constants. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	MinProb     float64 // probabilities are clamped to [MinProb, MaxProb]
	MaxProb     float64
	Margin      float64 // fair odds are multiplied by this (< 1)
	MinOdds     float64 // quotes are clamped to [MinOdds, MaxOdds]
	MaxOdds     float64
	Step        float64 // ladder nudge
	MinTradable float64 // quotes at or below this are suppressed
}

// DefaultConfig returns the production pricing constants.
func DefaultConfig() Config {
	return Config{
		MinProb:     0.02,
		MaxProb:     0.85,
		Margin:      0.92,
		MinOdds:     1.10,
		MaxOdds:     50.0,
		Step:        0.05,
		MinTradable: 1.01,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Pricer
// ──────────────────────────────────────────────────────────────────────────────

// Pricer converts probabilities into quotes. It is immutable and safe for
// concurrent use.
type Pricer struct {
	cfg         Config
	step        decimal.Decimal
	minTradable decimal.Decimal
}

// NewPricer builds a Pricer from cfg.
func NewPricer(cfg Config) *Pricer {
	return &Pricer{
		cfg:         cfg,
		step:        decimal.NewFromFloat(cfg.Step),
		minTradable: decimal.NewFromFloat(cfg.MinTradable),
	}
}

var defaultPricer = NewPricer(DefaultConfig())

// Default returns the Pricer built from DefaultConfig.
func Default() *Pricer { return defaultPricer }

// Config returns the constants the pricer was built with.
func (p *Pricer) Config() Config { return p.cfg }

// ClampProb limits prob to the configured probability range.
func (p *Pricer) ClampProb(prob float64) float64 {
	return clamp(prob, p.cfg.MinProb, p.cfg.MaxProb)
}

// ProbabilityToOdds clamps prob, inverts it, applies the margin, clamps the
// quote and rounds it half-up to 2 decimal places.
func (p *Pricer) ProbabilityToOdds(prob float64) decimal.Decimal {
	if math.IsNaN(prob) || prob <= 0 {
		prob = p.cfg.MinProb
	}
	prob = p.ClampProb(prob)
	o := clamp(1/prob*p.cfg.Margin, p.cfg.MinOdds, p.cfg.MaxOdds)
	return decimal.NewFromFloat(o).Round(2)
}

// Tradable reports whether a quote offers a meaningful return.
func (p *Pricer) Tradable(o decimal.Decimal) bool {
	return o.GreaterThan(p.minTradable)
}

// ImpliedProbability inverts a quote back to its fair probability net of
// margin.
func (p *Pricer) ImpliedProbability(o decimal.Decimal) float64 {
	f := o.InexactFloat64()
	if f <= 0 {
		return 0
	}
	return p.cfg.Margin / f
}

// ProbabilityToOdds prices prob with the default constants.
func ProbabilityToOdds(prob float64) decimal.Decimal {
	return defaultPricer.ProbabilityToOdds(prob)
}

// ──────────────────────────────────────────────────────────────────────────────
// Poisson goal lines
// ──────────────────────────────────────────────────────────────────────────────

// PoissonOver returns P(X > line) for X ~ Poisson(lambda), i.e.
// 1 − Σ_{i=0}^{⌊line⌋} e^−λ λ^i / i!.
func PoissonOver(lambda, line float64) float64 {
	if line < 0 {
		return 1
	}
	if lambda <= 0 {
		return 0
	}
	term := math.Exp(-lambda)
	cdf := term
	for i := 1; i <= int(math.Floor(line)); i++ {
		term *= lambda / float64(i)
		cdf += term
	}
	return clamp(1-cdf, 0, 1)
}

// Rung is one line of an over/under ladder. A side whose quote is not
// tradable is reported with its ok flag false and must not be offered.
type Rung struct {
	Line    float64
	Over    decimal.Decimal
	OverOK  bool
	Under   decimal.Decimal
	UnderOK bool
}

// Ladder prices over/under quotes for increasing lines. Over quotes strictly
// increase and under quotes strictly decrease from rung to rung; a quote that
// would break the order is moved one step past the previous rung instead of
// being recomputed. Suppressed quotes still anchor the next rung.
func (p *Pricer) Ladder(lambda float64, lines []float64) []Rung {
	rungs := make([]Rung, 0, len(lines))
	var lastOver, lastUnder decimal.Decimal
	for i, line := range lines {
		pOver := PoissonOver(lambda, line)
		over := p.ProbabilityToOdds(pOver)
		under := p.ProbabilityToOdds(1 - pOver)

		if i > 0 {
			if over.LessThanOrEqual(lastOver) {
				over = lastOver.Add(p.step)
			}
			if under.GreaterThanOrEqual(lastUnder) {
				under = lastUnder.Sub(p.step)
			}
		}
		lastOver, lastUnder = over, under

		rungs = append(rungs, Rung{
			Line:    line,
			Over:    over,
			OverOK:  p.Tradable(over),
			Under:   under,
			UnderOK: p.Tradable(under),
		})
	}
	return rungs
}

// Lines returns the half-goal lines from 0.5 up to and including max.
func Lines(max float64) []float64 {
	var out []float64
	for l := 0.5; l <= max; l++ {
		out = append(out, l)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
