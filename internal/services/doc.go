// Package services defines shared utilities consumed by the scan pipeline and
// the external service boundaries.
//
// Key responsibilities:
//   - Context helpers that stamp scan event IDs and pipeline step names for
//     logging and correlation.
//   - Structured error markers plus the Wrap helper so boundary failures carry
//     consistent component/operation context and can be classified (quota,
//     validation, transient) without string matching.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across the scan flow.
package services
