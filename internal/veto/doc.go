// Package veto runs the hierarchical round-robin veto.
//
// Each round scans every remaining auxiliary channel against the live
// primary population in parallel, picks the most significant channel,
// vetoes the primary events falling inside that channel's dilated trigger
// windows and retires the channel. Rounds continue until no channel clears
// the significance floor, the primary population is exhausted, the round
// cap is reached, or no channels remain.
//
// The scan is a pure map over channels followed by a sequential reduction,
// so the round history is identical for any worker count.
package veto
