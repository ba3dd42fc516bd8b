package view

import (
	"catalogexplorer/internal/filter"
	"catalogexplorer/internal/index"
)

// CompatState is the browsing state of a compatibility catalog.
type CompatState struct {
	Mode   index.Mode `json:"mode"`
	Query  string     `json:"query"`
	Picked string     `json:"picked,omitempty"`
}

// NewCompatState starts in projects mode with nothing picked.
func NewCompatState() *CompatState {
	return &CompatState{Mode: index.ModeProjects}
}

// SetMode switches sides. The picked name belongs to the previous side, so
// it is cleared on an actual change.
func (s *CompatState) SetMode(m index.Mode) {
	if s.Mode == m {
		return
	}
	s.Mode = m
	s.Picked = ""
}

// Visible returns the names shown for the current mode and query.
func (s *CompatState) Visible(idx index.CompatIndex) []string {
	return filter.Names(idx.Names(s.Mode), s.Query)
}

// Pick selects a name if it exists on the current side.
func (s *CompatState) Pick(idx index.CompatIndex, name string) bool {
	for _, n := range idx.Names(s.Mode) {
		if n == name {
			s.Picked = name
			return true
		}
	}
	return false
}

// Revalidate drops the picked name when a rebuilt index no longer has it.
func (s *CompatState) Revalidate(idx index.CompatIndex) {
	if s.Picked == "" {
		return
	}
	if !s.Pick(idx, s.Picked) {
		s.Picked = ""
	}
}
