package memory

import "time"

// defaultListLimit applies when [ListOpts.Limit] is zero.
const defaultListLimit = 50

// ListOpts filters [MeetingStore.List]. All non-zero fields are applied as
// AND conditions.
type ListOpts struct {
	// Query restricts results to meetings whose title or transcript matches.
	// Postgres uses full-text search; the file store a case-insensitive
	// substring match.
	Query string

	// After filters meetings that started after this instant (exclusive).
	After time.Time

	// Before filters meetings that started before this instant (exclusive).
	Before time.Time

	// Participant restricts results to meetings attended by this person.
	Participant string

	// Limit caps the number of results. Zero means 50.
	Limit int
}

// EffectiveLimit returns Limit or the default when unset.
func (o ListOpts) EffectiveLimit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}
