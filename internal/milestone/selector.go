// Package milestone picks a celebration message when a running total crosses a hundred-point boundary.
package milestone

import (
	"math/rand/v2"
	"sort"
)

// Step is the distance between two milestones.
const Step = 100

// Table maps a milestone (100, 200, ...) to its candidate messages.
type Table map[int][]string

// Selector chooses celebration messages from a Table.
type Selector struct {
	table   Table
	highest int
	pick    func(n int) int
}

// New builds a Selector. Milestones with no messages are ignored.
func New(table Table) *Selector {
	s := &Selector{table: make(Table, len(table)), pick: rand.IntN}
	keys := make([]int, 0, len(table))
	for k, msgs := range table {
		if len(msgs) == 0 {
			continue
		}
		s.table[k] = append([]string(nil), msgs...)
		keys = append(keys, k)
	}
	sort.Ints(keys)
	if len(keys) > 0 {
		s.highest = keys[len(keys)-1]
	}
	return s
}

// Crossed returns the milestone reached when the total moves from prev to next.
// When several boundaries are passed at once only the last one is reported.
func Crossed(prev, next int) (int, bool) {
	prevBoundary := prev / Step
	currBoundary := next / Step
	if currBoundary > prevBoundary && currBoundary >= 1 {
		return currBoundary * Step, true
	}
	return 0, false
}

// Select returns a celebration message if a milestone was crossed.
// Milestones above the highest configured one reuse its messages.
func (s *Selector) Select(prev, next int) (string, bool) {
	reached, ok := Crossed(prev, next)
	if !ok {
		return "", false
	}
	msgs, ok := s.table[reached]
	if !ok {
		msgs, ok = s.table[s.highest]
		if !ok {
			return "", false
		}
	}
	return msgs[s.pick(len(msgs))], true
}
