// Package termmodel is the nested term assurance projection written directly
// in Go: a best-estimate RealisticTerm whose capital requirement at every
// month runs a full PrudentTerm projection for the policies still in force.
package termmodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/cellgridgo/internal/engine"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Space names.
const (
	Term      = "Term"
	Realistic = "RealisticTerm"
	Prudent   = "PrudentTerm"
)

// Cells are the projection cells reported for RealisticTerm, in table order.
var Cells = []string{
	"age",
	"capital_change",
	"capital_requirement",
	"claims",
	"net_cashflow",
	"num_deaths",
	"num_pols_if",
	"premiums",
	"q_x",
	"term_remaining",
}

// Totals are the cells summed over the projection.
var Totals = []string{"net_cashflow", "capital_change"}

// ErrNegativeTime is returned by the recursive projection cells for a time
// index before the start of the projection.
var ErrNegativeTime = errors.New("negative time index")

// Basis holds the policy data and assumptions.
type Basis struct {
	TermMonths int
	Premium    float64
	SumAssured float64
	StartAge   int

	// Mortality is the flat monthly mortality rate, used when Table is empty.
	Mortality float64
	// Table names a value source table keyed by attained age. When set,
	// q_x reads it instead of Mortality.
	Table string
	// Margin scales mortality on the prudent basis.
	Margin float64
}

// DefaultBasis is a 10 year policy on a 30 year old with a 20% prudent
// mortality margin.
func DefaultBasis() Basis {
	return Basis{
		TermMonths: 120,
		Premium:    1300,
		SumAssured: 100_000,
		StartAge:   30,
		Mortality:  0.001,
		Margin:     1.2,
	}
}

// Horizon is the number of projection steps, including month zero.
func (b Basis) Horizon() int { return b.TermMonths + 1 }

func (b Basis) validate() error {
	switch {
	case b.TermMonths < 0:
		return fmt.Errorf("term must not be negative, got %d months", b.TermMonths)
	case b.Table == "" && (b.Mortality < 0 || b.Mortality > 1):
		return fmt.Errorf("mortality must be a rate between 0 and 1, got %g", b.Mortality)
	case b.Margin <= 0:
		return fmt.Errorf("prudent margin must be positive, got %g", b.Margin)
	}
	return nil
}

// Definitions builds the three space definitions. PrudentTerm derives from
// Term, not RealisticTerm, so a prudent projection never computes capital.
func Definitions(b Basis) (term, realistic, prudent *space.Definition, err error) {
	if err := b.validate(); err != nil {
		return nil, nil, nil, err
	}

	term, err = space.New(Term).
		Ref("term_m", value.Int(b.TermMonths)).
		Ref("premium", value.Float(b.Premium)).
		Ref("sum_assured", value.Float(b.SumAssured)).
		Ref("start_age", value.Int(b.StartAge)).
		Cell("num_pols_if", space.IndexFormula(numPolsIf), "t").
		Cell("num_deaths", space.IndexFormula(numDeaths), "t").
		Cell("term_remaining", space.IndexFormula(termRemaining), "t").
		Cell("q_x", space.IndexFormula(mortality(b, 1)), "t").
		Cell("age", space.IndexFormula(age), "t").
		Cell("net_cashflow", space.IndexFormula(netCashflow), "t").
		Cell("premiums", space.IndexFormula(premiums), "t").
		Cell("claims", space.IndexFormula(claims), "t").
		Build()
	if err != nil {
		return nil, nil, nil, err
	}

	prudent, err = space.New(Prudent).
		Base(term).
		Cell("q_x", space.IndexFormula(mortality(b, b.Margin)), "t").
		Build()
	if err != nil {
		return nil, nil, nil, err
	}

	realistic, err = space.New(Realistic).
		Base(term).
		Child(Prudent, prudent, rollForward, "t0").
		Cell("capital_requirement", space.IndexFormula(capitalRequirement), "t").
		Cell("capital_change", space.IndexFormula(capitalChange), "t").
		Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return term, realistic, prudent, nil
}

// Load adds RealisticTerm to m and returns its instance.
func Load(ctx context.Context, m *engine.Model, b Basis) (*engine.Instance, error) {
	_, realistic, _, err := Definitions(b)
	if err != nil {
		return nil, fmt.Errorf("term model: %w", err)
	}
	return m.AddSpace(ctx, realistic)
}

func numPolsIf(ctx context.Context, s space.Scope, t int) (float64, error) {
	switch {
	case t < 0:
		return 0, fmt.Errorf("num_pols_if(%d): %w", t, ErrNegativeTime)
	case t == 0:
		return 1, nil
	}
	inForce, err := space.FloatAt(ctx, s, "num_pols_if", t-1)
	if err != nil {
		return 0, err
	}
	deaths, err := space.FloatAt(ctx, s, "num_deaths", t-1)
	return inForce - deaths, err
}

func numDeaths(ctx context.Context, s space.Scope, t int) (float64, error) {
	switch {
	case t < 0:
		return 0, fmt.Errorf("num_deaths(%d): %w", t, ErrNegativeTime)
	case t == 0:
		return 0, nil
	}
	inForce, err := space.FloatAt(ctx, s, "num_pols_if", t-1)
	if err != nil {
		return 0, err
	}
	q, err := space.FloatAt(ctx, s, "q_x", t-1)
	return inForce * q, err
}

func termRemaining(ctx context.Context, s space.Scope, t int) (float64, error) {
	term, err := space.RefInt(ctx, s, "term_m")
	return float64(term - t), err
}

// mortality is q_x scaled by margin, read from the basis table by attained
// age when one is configured.
func mortality(b Basis, margin float64) func(context.Context, space.Scope, int) (float64, error) {
	return func(ctx context.Context, s space.Scope, t int) (float64, error) {
		if b.Table == "" {
			return b.Mortality * margin, nil
		}
		a, err := space.Float(ctx, s, "age", value.Int(t))
		if err != nil {
			return 0, err
		}
		v, err := s.Lookup(ctx, b.Table, value.Float(a))
		if err != nil {
			return 0, err
		}
		q, err := value.ToFloat(v)
		return q * margin, err
	}
}

func age(ctx context.Context, s space.Scope, t int) (float64, error) {
	start, err := space.RefInt(ctx, s, "start_age")
	return float64(start + t/12), err
}

func netCashflow(ctx context.Context, s space.Scope, t int) (float64, error) {
	p, err := space.FloatAt(ctx, s, "premiums", t)
	if err != nil {
		return 0, err
	}
	c, err := space.FloatAt(ctx, s, "claims", t)
	return p - c, err
}

// premiums are paid monthly in advance, except in the final month.
func premiums(ctx context.Context, s space.Scope, t int) (float64, error) {
	term, err := space.RefInt(ctx, s, "term_m")
	if err != nil || t < 0 || t >= term-1 {
		return 0, err
	}
	inForce, err := space.FloatAt(ctx, s, "num_pols_if", t)
	if err != nil {
		return 0, err
	}
	premium, err := space.RefFloat(ctx, s, "premium")
	return inForce * premium / 12, err
}

func claims(ctx context.Context, s space.Scope, t int) (float64, error) {
	term, err := space.RefInt(ctx, s, "term_m")
	if err != nil || t < 0 || t >= term {
		return 0, err
	}
	deaths, err := space.FloatAt(ctx, s, "num_deaths", t)
	if err != nil {
		return 0, err
	}
	sa, err := space.RefFloat(ctx, s, "sum_assured")
	return deaths * sa, err
}

// rollForward starts the prudent projection at t0 with the remaining term
// and the attained age. Premium and sum assured are inherited unchanged.
func rollForward(ctx context.Context, parent space.Scope, key []cty.Value) (space.Params, error) {
	remaining, err := parent.Cell(ctx, "term_remaining", key...)
	if err != nil {
		return space.Params{}, err
	}
	attained, err := parent.Cell(ctx, "age", key...)
	if err != nil {
		return space.Params{}, err
	}
	return space.Params{Refs: map[string]cty.Value{
		"term_m":    remaining,
		"start_age": attained,
	}}, nil
}

// capitalRequirement is the undiscounted prudent net cashflow over the full
// term, per policy in force at t.
func capitalRequirement(ctx context.Context, s space.Scope, t int) (float64, error) {
	term, err := space.RefInt(ctx, s, "term_m")
	if err != nil {
		return 0, err
	}
	prudent, err := s.Child(ctx, Prudent, value.Int(t))
	if err != nil {
		return 0, err
	}

	var total float64
	for i := 0; i <= term; i++ {
		ncf, err := space.FloatAt(ctx, prudent, "net_cashflow", i)
		if err != nil {
			return 0, err
		}
		total += ncf
	}
	inForce, err := space.FloatAt(ctx, s, "num_pols_if", t)
	return total * inForce, err
}

func capitalChange(ctx context.Context, s space.Scope, t int) (float64, error) {
	now, err := space.FloatAt(ctx, s, "capital_requirement", t)
	if err != nil || t == 0 {
		return now, err
	}
	before, err := space.FloatAt(ctx, s, "capital_requirement", t-1)
	return now - before, err
}
