/*
Package value holds the helpers that every other package uses to move data
in and out of cty.Value, the single value type flowing through cells.

It owns three concerns:

  - Canonical argument keys. A cell caches one result per argument tuple, and
    the tuple is reduced to a string by Key. Numbers are normalized so that an
    integer 3 and a float 3.0 address the same cache entry.
  - Conversion between Go and cty values (FromGo, ToFloat, ToInt, ToGo).
  - Log-friendly formatting of argument tuples (Format).
*/
package value
