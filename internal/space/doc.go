/*
Package space defines the static side of a model: space definitions, their
cells, references and child declarations, and the inheritance rules that
layer one definition over another.

A Definition is immutable once built. Name resolution walks the layers from
the most derived definition to its base chain, so a derived space shadows any
inherited cell, reference or child with the same name:

	term, _ := space.New("Term").
		Ref("premium", value.Int(1300)).
		Cell("premiums", premiums, "t").
		Build()

	prudent, _ := space.New("PrudentTerm").
		Base(term).
		Cell("q_x", space.Const(value.Float(0.0012)), "t").
		Build()

Formulas are plain Go function values. They read everything they depend on
through a Scope, which the evaluator binds to one concrete space instance, so
the same Formula serves every instance that inherits it.
*/
package space
