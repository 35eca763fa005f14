// Package preflight provides readiness checks for the directories and
// binaries vidqc depends on.
//
// These checks run in two contexts:
//   - `vidqc deps` prints every result as a status table.
//   - `vidqc analyze` calls RunAll before starting and stops early when a
//     required check fails, instead of failing mid-run.
package preflight
