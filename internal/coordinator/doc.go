// Package coordinator implements combinators over groups of waitables:
// first-to-settle, all-settled in input order, and completion-ordered
// iteration. Combinators only observe their members; they never settle,
// copy or cancel them.
package coordinator
