// Package allocation reconciles required against allocated cells for batch
// plans and module assemblies. Allocation is manual: a Selection only grows
// through explicit Add calls, and every rejected Add leaves it unchanged.
package allocation

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/petrijr/packflow/pkg/api"
)

// Normalize canonicalizes a cell serial so that scans and stored values
// compare equal: Unicode NFC, surrounding space trimmed, upper case.
func Normalize(serial string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFC.String(serial)))
}

// Requirement is the number of cells needed to build plannedQuantity
// modules. Non-positive inputs require nothing.
func Requirement(plannedQuantity, cellsPerModule int) int {
	if plannedQuantity <= 0 || cellsPerModule <= 0 {
		return 0
	}
	return plannedQuantity * cellsPerModule
}

// Complete reports whether allocated exactly meets a non-zero requirement.
func Complete(required, allocated int) bool {
	return required > 0 && allocated == required
}

// VerifyExact fails unless allocated exactly meets required.
func VerifyExact(required, allocated int) error {
	if !Complete(required, allocated) {
		return api.BadRequest("Allocation Mismatch. Required: %d, Allocated: %d", required, allocated)
	}
	return nil
}

// Status builds the reconciler view for the given counts.
func Status(required, allocated int) api.AllocationStatus {
	remaining := required - allocated
	if remaining < 0 {
		remaining = 0
	}
	return api.AllocationStatus{
		Required:  required,
		Allocated: allocated,
		Remaining: remaining,
		Complete:  Complete(required, allocated),
	}
}

// Selection is an ordered, duplicate-free set of allocated cells with a
// fixed capacity.
type Selection struct {
	required int
	cells    []string
	index    map[string]struct{}
}

// NewSelection wraps an existing allocation. Cells are normalized and
// duplicates dropped; the capacity is not enforced on the initial set.
func NewSelection(required int, cells []string) *Selection {
	s := &Selection{required: required, index: make(map[string]struct{}, len(cells))}
	for _, c := range cells {
		c = Normalize(c)
		if _, dup := s.index[c]; dup || c == "" {
			continue
		}
		s.index[c] = struct{}{}
		s.cells = append(s.cells, c)
	}
	return s
}

// Add appends serial if there is room, it is not already selected and pool
// contains it.
func (s *Selection) Add(serial string, pool *Pool) error {
	serial = Normalize(serial)
	if len(s.cells) >= s.required {
		return api.BadRequest("Cannot allocate more than %d cells.", s.required)
	}
	if _, dup := s.index[serial]; dup {
		return api.BadRequest("Cell %s is already allocated", serial)
	}
	if !pool.Contains(serial) {
		return pool.reject(serial)
	}
	s.index[serial] = struct{}{}
	s.cells = append(s.cells, serial)
	return nil
}

// AddAll adds every serial in order. On the first failure the selection is
// restored to its state before the call.
func (s *Selection) AddAll(serials []string, pool *Pool) error {
	mark := len(s.cells)
	for _, serial := range serials {
		if err := s.Add(serial, pool); err != nil {
			for _, c := range s.cells[mark:] {
				delete(s.index, c)
			}
			s.cells = s.cells[:mark]
			return err
		}
	}
	return nil
}

// Remove drops serial and reports whether it was selected.
func (s *Selection) Remove(serial string) bool {
	serial = Normalize(serial)
	if _, ok := s.index[serial]; !ok {
		return false
	}
	delete(s.index, serial)
	for i, c := range s.cells {
		if c == serial {
			s.cells = append(s.cells[:i], s.cells[i+1:]...)
			break
		}
	}
	return true
}

// Cells returns a copy of the selection in insertion order.
func (s *Selection) Cells() []string {
	out := make([]string, len(s.cells))
	copy(out, s.cells)
	return out
}

func (s *Selection) Len() int                     { return len(s.cells) }
func (s *Selection) Required() int                { return s.required }
func (s *Selection) Status() api.AllocationStatus { return Status(s.required, len(s.cells)) }
