// Package query defines the backend-agnostic filter algebra the storage
// adapters translate into their native query form, plus the per-kind field
// schema used to validate filters before they reach a backend.
//
// Filter is a sealed interface (marker method pattern): only types in this
// package implement it, so adapter translators can type-switch exhaustively
// and fail fast on anything outside the portable fragment.
package query

// Filter is one node of a predicate tree. Leaves compare a named entity field
// against values; And is the only composition.
type Filter interface {
	filterNode()
}

// Equal matches entities whose field equals Value.
type Equal struct {
	Field string
	Value any
}

// In matches entities whose field equals any of Values. An empty Values set
// matches nothing, on every backend.
type In struct {
	Field  string
	Values []any
}

// Range matches entities whose field lies between Lo and Hi, inclusive on
// both bounds.
type Range struct {
	Field string
	Lo    any
	Hi    any
}

// IsNull matches entities whose field is unset.
type IsNull struct {
	Field string
}

// And matches entities satisfying every child filter. An empty And matches
// everything.
type And struct {
	Filters []Filter
}

func (Equal) filterNode()  {}
func (In) filterNode()     {}
func (Range) filterNode()  {}
func (IsNull) filterNode() {}
func (And) filterNode()    {}

// Order designates the sort key for a query. The zero value means the
// default ordering (by id ascending), which keeps pagination deterministic
// when the caller specifies nothing.
type Order struct {
	Field      string
	Descending bool
}

// Spec is a complete query: an optional filter, an optional ordering and an
// optional total-result limit (0 = unbounded).
type Spec struct {
	Filter Filter
	Order  *Order
	Limit  int
}
