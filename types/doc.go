// Package types defines the shared data model of the DocFlow core:
// queries, routing decisions, evidence, stream events, and the unified
// error taxonomy. It has no dependencies beyond the standard library so
// that every other package can import it freely.
package types
