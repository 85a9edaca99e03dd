// Package ordering keeps sibling records (chapters of a module, questions of
// an exam or pretest) densely numbered 1..N.
package ordering

import (
	"fmt"
	"sort"

	"github.com/pavelanni/coursecore/internal/model"
)

// Sibling is one record of an ordered sibling set.
type Sibling struct {
	ID    string
	Index int
}

// MaxIndex returns the highest index in the set, or 0 for an empty set.
func MaxIndex(siblings []Sibling) int {
	max := 0
	for _, s := range siblings {
		if s.Index > max {
			max = s.Index
		}
	}
	return max
}

// NextIndex returns the index a new sibling appended to the set receives.
func NextIndex(siblings []Sibling) int {
	return MaxIndex(siblings) + 1
}

// ValidateExplicit checks that requested lies in [1, max]. For an empty set
// the only valid index is 1.
func ValidateExplicit(siblings []Sibling, requested int) error {
	max := MaxIndex(siblings)
	if max == 0 {
		if requested != 1 {
			return fmt.Errorf("%w: order index must be 1 when the set is empty, got %d", model.ErrInvalidRange, requested)
		}
		return nil
	}
	if requested < 1 || requested > max {
		return fmt.Errorf("%w: order index must be between 1 and %d, got %d", model.ErrInvalidRange, max, requested)
	}
	return nil
}

// Compact maps ids, given in their current relative order, to 1..N.
func Compact(orderedIDs []string) map[string]int {
	out := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		out[id] = i + 1
	}
	return out
}

// CompactSiblings sorts siblings by index (ties broken by id) and returns
// only the assignments that differ from the current state.
func CompactSiblings(siblings []Sibling) map[string]int {
	sorted := append([]Sibling(nil), siblings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Index != sorted[j].Index {
			return sorted[i].Index < sorted[j].Index
		}
		return sorted[i].ID < sorted[j].ID
	})
	ids := make([]string, len(sorted))
	for i, s := range sorted {
		ids[i] = s.ID
	}
	changes := Compact(ids)
	for _, s := range sorted {
		if changes[s.ID] == s.Index {
			delete(changes, s.ID)
		}
	}
	return changes
}

// MovePlan computes the assignments that move id to requested. A sibling
// already holding requested takes the mover's old index; nothing cascades.
func MovePlan(siblings []Sibling, id string, requested int) (map[string]int, error) {
	if err := ValidateExplicit(siblings, requested); err != nil {
		return nil, err
	}
	current := -1
	for _, s := range siblings {
		if s.ID == id {
			current = s.Index
			break
		}
	}
	if current < 0 {
		return nil, fmt.Errorf("%w: sibling %s", model.ErrNotFound, id)
	}
	if current == requested {
		return map[string]int{}, nil
	}
	plan := map[string]int{id: requested}
	for _, s := range siblings {
		if s.ID != id && s.Index == requested {
			plan[s.ID] = current
		}
	}
	return plan, nil
}
