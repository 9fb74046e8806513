/*
Package hclmodel loads calculation models written in HCL.

A model file declares spaces, their reference values, cells and children:

	space "Term" {
	  refs = { term_m = 120, premium = 1300 }

	  cell "num_pols_if" {
	    params  = ["t"]
	    formula = t == 0 ? 1 : num_pols_if(t - 1) - num_deaths(t - 1)
	  }
	}

	space "RealisticTerm" {
	  base = "Term"

	  child "PrudentTerm" {
	    space  = "PrudentTerm"
	    params = ["t0"]
	    refs   = { term_m = term_remaining(t0), start_age = age(t0) }
	  }
	}

Inside a formula, cells of the owning space are called as functions, while
parameters and references are plain variables. A few builtins are available
as well:

	child(name, key, cell, args...)  a cell of a dynamic child instance
	lookup(table, key)               a row of an external table
	fail(message)                    raise a FailError, e.g. for an index out of range
	sum(list)                        total of a list of numbers

together with range, min, max, floor, ceil, abs, pow, length and concat.

Conditional expressions only evaluate the branch they select, which is what
lets a recursive formula terminate. This holds inside list literals and
[for ...] expressions too; inside object literals, {for ...} expressions,
indexing and splats both branches are still evaluated, so keep recursive
calls out of those. Every call and name is checked when the
model is loaded; all problems are reported at once.

A file may also carry numeric tables for lookup:

	table "mortality" {
	  rows = { 30 = 0.001, 31 = 0.0011 }
	}
*/
package hclmodel
