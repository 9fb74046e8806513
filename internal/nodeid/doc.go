/*
Package nodeid provides a structured representation for addressing spaces,
dynamic space instances and cells within a model.

The format is a dot-separated sequence of segments, where a segment naming a
parameterized child space carries its key in brackets:

	RealisticTerm.PrudentTerm[3].net_cashflow
	Portfolio.Policy["P-17", 2].claims

Keys are literals: numbers, double-quoted strings, true and false. This
package owns all formatting and parsing of addresses so that the evaluator,
the loader and the CLI agree on one canonical spelling.
*/
package nodeid
