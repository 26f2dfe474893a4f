// Package query turns parsed finder intents into executable plans.
//
// A Plan is a value: filters, an optional ordering, an optional column
// projection and a limit, plus the Mode discriminating single, multiple and
// count reads. Plans are built in three steps:
//
//	intent, _ := finder.Parse("getLatest3ByStatus")
//	filter, err := query.Resolve(intent.Field, "open") // Equals; a slice yields InSet
//	plan := query.Build(intent, filter, query.Options{})
//
// Resolve fails with ErrMissingQualifier for nil, empty strings and empty
// collections, so a finder never degrades into an unfiltered read.
//
// Plan.Canonical produces the normalized form cache keys are derived from.
// Equivalent plans (same filters in a different order, the same set values in
// a different order, the same projected columns) have identical canonical forms.
package query
