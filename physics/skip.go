package physics

import "github.com/lixenwraith/castqueue/parameter"

// SkipList is a fixed-capacity set of entities a query ignores, stored inline
type SkipList struct {
	entities [parameter.MaxSkipEntities]Entity
	n        uint8
}

// Skip builds a skip list, dropping entities beyond capacity
func Skip(entities ...Entity) SkipList {
	var s SkipList
	for _, e := range entities {
		s.Add(e)
	}
	return s
}

// Add inserts e, reporting false when the list is full; duplicates and 0 are accepted as no-ops
func (s *SkipList) Add(e Entity) bool {
	if e == 0 || s.Contains(e) {
		return true
	}
	if int(s.n) == len(s.entities) {
		return false
	}
	s.entities[s.n] = e
	s.n++
	return true
}

func (s *SkipList) Contains(e Entity) bool {
	for i := uint8(0); i < s.n; i++ {
		if s.entities[i] == e {
			return true
		}
	}
	return false
}

func (s *SkipList) Len() int { return int(s.n) }

// Entities returns a view of the listed entities
func (s *SkipList) Entities() []Entity {
	return s.entities[:s.n]
}
