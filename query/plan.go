package query

// Mode discriminates the kind of read a plan describes. It is part of the
// canonical form, so a single-row read never shares a cache key with a
// sequence read over the same filters.
type Mode int

const (
	ModeSingle Mode = iota
	ModeMultiple
	ModeCount
)

func (m Mode) String() string {
	switch m {
	case ModeMultiple:
		return "multiple"
	case ModeCount:
		return "count"
	default:
		return "single"
	}
}

// MatchMode is how a filter compares its column against the qualifier.
type MatchMode int

const (
	Equals MatchMode = iota
	InSet
)

func (m MatchMode) String() string {
	if m == InSet {
		return "in"
	}
	return "eq"
}

// Filter is a single predicate on a column.
// Value is set for Equals, Values for InSet.
type Filter struct {
	Field  string
	Mode   MatchMode
	Value  any
	Values []any
}

// Direction is the sort direction of an Ordering.
type Direction int

const (
	// DirectionDefault lets the builder pick a direction from the signature.
	DirectionDefault Direction = iota
	Ascending
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "default"
	}
}

// Ordering sorts a plan by a single column.
type Ordering struct {
	Field     string
	Direction Direction
}

// Plan is the executable description of a query. Plans are values: two plans
// that differ only in the order their filters were supplied share a canonical
// form and therefore a cache key.
type Plan struct {
	Mode    Mode
	Filters []Filter
	// Order is nil when the store's natural order applies.
	Order *Ordering
	// Columns is nil when every column is projected.
	Columns []string
	// Limit is zero for "no limit". Single plans always carry 1.
	Limit int
}

// AllColumns reports whether the plan projects every column.
func (p Plan) AllColumns() bool {
	return len(p.Columns) == 0
}

// Unfiltered reports whether the plan reads the whole table.
func (p Plan) Unfiltered() bool {
	return len(p.Filters) == 0
}
