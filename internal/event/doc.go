// Package event holds the immutable event data model and the Event Store.
//
// An Event is one trigger on one channel (a glitch on the primary channel or
// a candidate on an auxiliary channel). A Population is the time-ordered,
// validated collection of events for a single channel; once built it is never
// mutated, so populations can be shared freely between goroutines.
//
// The Store loads populations from a Source (CSV directory, sqlite, memory),
// applies the load-time conditioning the trigger pipeline expects (frequency
// band, per-channel significance cut, time clustering, analysis span) and
// caches the result for the lifetime of a run.
package event
