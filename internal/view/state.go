// Package view holds per-catalog view state: the active grouping key, search
// text, selected record and loaded dataset.
package view

// State tracks the view over a dataset of T. The fields are independent and
// every setter is idempotent.
type State[T any] struct {
	groupKey string
	query    string
	class    string

	dataset  []T
	selected T
	hasSel   bool
	same     func(a, b T) bool
}

// New constructs a State over dataset, selecting its first record. same
// decides whether two records denote the same entry across replacements.
func New[T any](dataset []T, same func(a, b T) bool) *State[T] {
	s := &State[T]{same: same}
	s.Replace(dataset)
	return s
}

// Dataset returns the loaded dataset.
func (s *State[T]) Dataset() []T { return s.dataset }

// GroupKey returns the active grouping key.
func (s *State[T]) GroupKey() string { return s.groupKey }

// SetGroupKey changes the grouping key.
func (s *State[T]) SetGroupKey(key string) { s.groupKey = key }

// Query returns the current search text.
func (s *State[T]) Query() string { return s.query }

// SetQuery changes the search text.
func (s *State[T]) SetQuery(q string) { s.query = q }

// Class returns the selected group restriction; empty means all groups.
func (s *State[T]) Class() string { return s.class }

// SetClass restricts the view to one group; empty clears the restriction.
func (s *State[T]) SetClass(c string) { s.class = c }

// Selected returns the selected record, if any.
func (s *State[T]) Selected() (T, bool) { return s.selected, s.hasSel }

// Select makes item the selection when it is part of the dataset.
func (s *State[T]) Select(item T) bool {
	for _, candidate := range s.dataset {
		if s.same(candidate, item) {
			s.selected, s.hasSel = candidate, true
			return true
		}
	}
	return false
}

// ClearSelection drops the current selection.
func (s *State[T]) ClearSelection() {
	var zero T
	s.selected, s.hasSel = zero, false
}

// Replace swaps in a new dataset. A selection still present in the new
// dataset is kept; otherwise selection moves to the first record, or to
// nothing when the dataset is empty.
func (s *State[T]) Replace(dataset []T) {
	s.dataset = dataset
	if s.hasSel {
		for _, candidate := range dataset {
			if s.same(candidate, s.selected) {
				s.selected = candidate
				return
			}
		}
	}
	if len(dataset) == 0 {
		s.ClearSelection()
		return
	}
	s.selected, s.hasSel = dataset[0], true
}
