// Package main hosts the vidqc CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging and binary resolution
// once in commandContext, then hands off to the internal packages:
// analyze drives internal/qc and records runs through internal/history,
// provision and bundle drive internal/provision and internal/bundle, and
// deps reports internal/deps resolution alongside internal/preflight.
//
// Keep this package lean: add behaviour to the internal packages first and
// surface it here through flags and rendering only.
package main
