// Package dispatch spawns a fixed number of units of work on one concurrency
// substrate (OS processes or OS threads) and blocks until every unit has
// completed.
//
// A run never mixes substrates. Process units are reaped in completion order
// and their exit status is ignored; thread units are joined in spawn order.
// Failing to create any unit aborts the run.
package dispatch
