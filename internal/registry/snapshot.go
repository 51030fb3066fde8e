package registry

import "slices"

// Snapshot is an immutable view of all registrations at one instant.
// Entries are ordered by registration sequence.
type Snapshot struct {
	entries []Registration
	dirty   bool
}

var emptySnapshot = &Snapshot{}

func newSnapshot(entries map[string]*Registration) *Snapshot {
	s := &Snapshot{entries: make([]Registration, 0, len(entries))}
	for _, reg := range entries {
		s.entries = append(s.entries, *reg)
		if reg.Dirty {
			s.dirty = true
		}
	}
	slices.SortFunc(s.entries, func(a, b Registration) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return s
}

// IsDirty is true iff at least one registration is dirty.
func (s *Snapshot) IsDirty() bool {
	return s.dirty
}

// Len returns the number of registered forms.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the registrations in registration order.
func (s *Snapshot) Entries() []Registration {
	return slices.Clone(s.entries)
}

// Lookup finds the registration for formID.
func (s *Snapshot) Lookup(formID string) (Registration, bool) {
	for _, reg := range s.entries {
		if reg.FormID == formID {
			return reg, true
		}
	}
	return Registration{}, false
}

// ActiveDraft returns the earliest-registered dirty draft form.
func (s *Snapshot) ActiveDraft() (Registration, bool) {
	for _, reg := range s.entries {
		if reg.Dirty && reg.Kind == KindDraft {
			return reg, true
		}
	}
	return Registration{}, false
}

// ActiveEdit returns the earliest-registered dirty edit form.
func (s *Snapshot) ActiveEdit() (Registration, bool) {
	for _, reg := range s.entries {
		if reg.Dirty && reg.Kind == KindEdit {
			return reg, true
		}
	}
	return Registration{}, false
}

// HasDirtyEdit reports whether any edit form is dirty.
func (s *Snapshot) HasDirtyEdit() bool {
	_, ok := s.ActiveEdit()
	return ok
}

// DirtyForms returns the IDs of dirty forms in registration order.
func (s *Snapshot) DirtyForms() []string {
	var ids []string
	for _, reg := range s.entries {
		if reg.Dirty {
			ids = append(ids, reg.FormID)
		}
	}
	return ids
}
