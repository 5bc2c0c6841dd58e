// Package value provides the dynamic value model for relstore records.
//
// Records are untyped trees: objects, arrays and scalars decoded from JSON or
// YAML. This package imports nothing internal; every other package builds on
// it.
//
// Key design constraints:
//   - A missing field is an absent map key, an explicit null is Null{}
//   - Integral JSON numbers decode to Int, all others to Float
//   - Object iteration order is RFC 8785 (UTF-16 code units) wherever order matters
package value
