// Package record defines the opaque record shape the view engine operates on.
//
// A Record is an arbitrarily-shaped key/value entity (a medication, a lab
// result, an allergy, a user). The engine never owns a schema for it: every
// field it touches is reached through a Field, an explicit accessor built
// either from a dot-separated path or from a caller-supplied function.
//
// # Field Access
//
// Paths are split once, when the Field is constructed, not on every access:
//
//	name := record.F("medication_name")
//	prescriber := record.F("prescriber.name")
//	firstCode := record.F("codes.0.display")
//
// Custom accessors cover derived values:
//
//	age := record.FieldFunc("age", func(r record.Record) (any, bool) {
//	    return computeAge(r), true
//	})
//
// A missing key, a nil value, or a path that walks through a non-container
// all read as "absent" (ok == false). Absent values never panic.
//
// # Value Coercion
//
// String, Number, Truthy, Time and Strings convert loosely-typed record values
// (JSON numbers arrive as float64, YAML integers as int, dates as strings)
// into the typed values the filter and sort engines compare.
//
// # Canonical Encoding
//
// MarshalCanonical produces RFC 8785 style canonical JSON (UTF-16 key order,
// NFC-normalized strings, no HTML escaping). Fingerprint hashes that encoding
// with domain separation; the SQLite record store uses it to deduplicate
// imports and the view manager uses canonical state encoding as its memo key.
package record
