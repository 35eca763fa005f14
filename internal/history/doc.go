// Package history keeps a SQLite record of every analysis run.
//
// Each run stores its summary columns for listing, the per-check outcome
// rows and the full report as JSON so `vidqc history show` can reproduce
// the original output. Schema changes ship as numbered files under
// migrations/ and are applied in order on Open.
package history
