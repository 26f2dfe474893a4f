package query

import "github.com/goliatone/go-repository-finder/finder"

// DefaultCreatedField is the column Latest/Oldest order by when the caller
// does not name one.
const DefaultCreatedField = "created_at"

// Options carries the caller supplied parts of a plan.
type Options struct {
	// Order overrides the ordering implied by the signature. A zero Direction
	// takes its direction from the signature.
	Order *Ordering
	// Columns projects a subset of columns; empty means all.
	Columns []string
	// CreatedField replaces DefaultCreatedField.
	CreatedField string
}

func (o Options) createdField() string {
	if o.CreatedField != "" {
		return o.CreatedField
	}
	return DefaultCreatedField
}

// Build composes a parsed intent and its resolved filter into a Plan.
func Build(intent finder.Intent, filter Filter, opts Options) Plan {
	plan := Plan{
		Mode:    ModeSingle,
		Filters: []Filter{copyFilter(filter)},
		Order:   resolveOrder(intent.Recency, opts),
		Columns: copyColumns(opts.Columns),
		Limit:   1,
	}

	if intent.Operation == finder.MultiResult {
		plan.Mode = ModeMultiple
		plan.Limit = 0
		if intent.Limit > 0 {
			plan.Limit = intent.Limit
		}
	}

	return plan
}

// BuildAll returns the plan for reading every row, optionally ordered and projected.
func BuildAll(opts Options) Plan {
	return Plan{
		Mode:    ModeMultiple,
		Order:   resolveOrder(finder.Unspecified, opts),
		Columns: copyColumns(opts.Columns),
	}
}

// BuildCount returns the plan for counting rows matching filters.
func BuildCount(filters ...Filter) Plan {
	return Plan{
		Mode:    ModeCount,
		Filters: copyFilters(filters),
	}
}

// BuildFirst returns a single row plan matching every filter.
func BuildFirst(filters []Filter, opts Options) Plan {
	return Plan{
		Mode:    ModeSingle,
		Filters: copyFilters(filters),
		Order:   resolveOrder(finder.Unspecified, opts),
		Columns: copyColumns(opts.Columns),
		Limit:   1,
	}
}

// resolveOrder applies the precedence rules: an explicit ordering wins over the
// signature, and a signature recency orders the created field.
func resolveOrder(recency finder.Recency, opts Options) *Ordering {
	implied := directionFor(recency)

	if opts.Order != nil {
		order := *opts.Order
		if order.Field == "" {
			order.Field = opts.createdField()
		}
		if order.Direction == DirectionDefault {
			order.Direction = implied
			if order.Direction == DirectionDefault {
				order.Direction = Ascending
			}
		}
		return &order
	}

	if implied == DirectionDefault {
		return nil
	}

	return &Ordering{Field: opts.createdField(), Direction: implied}
}

func directionFor(recency finder.Recency) Direction {
	switch recency {
	case finder.Latest:
		return Descending
	case finder.Oldest:
		return Ascending
	default:
		return DirectionDefault
	}
}

func copyFilter(f Filter) Filter {
	if f.Values != nil {
		f.Values = append([]any(nil), f.Values...)
	}
	return f
}

func copyFilters(filters []Filter) []Filter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = copyFilter(f)
	}
	return out
}

func copyColumns(columns []string) []string {
	if len(columns) == 0 {
		return nil
	}
	return append([]string(nil), columns...)
}
