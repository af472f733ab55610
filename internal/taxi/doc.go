// Package taxi turns NYC taxi trip lines into typed records and indexable
// documents.
//
// Parse decodes one NDJSON line into a Record, rejecting lines that are not
// valid JSON or lack the coordinates and timestamps every trip must carry.
// Build projects a Record onto the closed Field set, emitting range,
// stored and text entries as described by Schema.
package taxi
