// Package harness runs view scenarios: YAML files that open a compiled
// view over a fixed record set, replay user actions against it, and check
// the derived state.
//
// # Scenario Format
//
//	name: medication_filters
//	description: "Status filter and sort toggling"
//	view: medications
//	now: "2024-03-09T12:00:00Z"
//	records:
//	  - { id: m1, medication_name: Lisinopril, status: active }
//	  - { id: m2, medication_name: Aspirin, status: stopped }
//	steps:
//	  - action: update_filter
//	    key: status
//	    value: active
//	    expect: { filtered: 1, ids: [m1] }
//	  - action: sort_change
//	    field: medication_name
//	    expect: { sort_order: desc }
//	assertions:
//	  - type: subset
//	  - type: final_ids
//	    ids: [m1]
//
// Records may instead come from records_file (JSON or YAML, relative to the
// scenario file).
//
// # Step Actions
//
//   - update_filter, update_filters, clear_filters: change filter state
//   - sort_change: toggle or select a sort field; set_sort: field and order
//   - set_additional: replace the side-channel data for custom predicates
//   - set_records: replace the record collection
//   - advance_clock, refresh: move the pinned clock and re-derive
//
// # Assertion Types
//
//   - identity_filter: the all-sentinel state keeps every record in order
//   - subset: filtered records are a subsequence of the input
//   - stable_sort: sorting permutes the filtered records and is idempotent
//   - deterministic: re-deriving from scratch yields the same fingerprint
//   - no_mutation: input records are never modified
//   - final_ids: exact final display order
//   - counts: total and filtered counts
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store, with the clock pinned
// at the scenario's now and generated ids drawn from a fixed sequence, so
// traces are byte-identical across runs and can be compared with golden
// files (see RunWithGolden).
package harness
