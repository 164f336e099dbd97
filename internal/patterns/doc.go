// Package patterns compiles the filename rule sets used to decide whether a
// removed download should also be blocklisted.
//
// Two pattern forms are supported. Plain patterns use a restricted glob
// syntax: a single "*" may appear at the start, the end, or both, giving
// suffix, prefix, and substring tests; anything else is an exact match.
// Patterns prefixed with "regex:" are Go regular expressions matched
// unanchored unless the expression anchors itself. All matching is
// case-insensitive.
package patterns
