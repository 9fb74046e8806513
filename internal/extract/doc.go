// Package extract pulls ordered results out of a model: one cell over a list
// of argument tuples, several cells side by side as a table, and column
// totals. Extraction keeps going past failures; every entry carries either a
// value or its own error.
package extract
