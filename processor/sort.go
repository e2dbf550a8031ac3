package processor

import (
	"fmt"
	"slices"
	"strings"
)

// CycleLink is one edge of a dependency cycle: Before must run before After
// because DeclaredBy said so in its Declaration ("UseBefore" or "UseAfter").
type CycleLink struct {
	Before      ID
	After       ID
	DeclaredBy  ID
	Declaration string
}

// CycleError reports processors whose ordering declarations form a cycle.
type CycleError struct {
	Links []CycleLink
}

// Error lists the chain of processor classes and the declaration behind each edge.
func (e *CycleError) Error() string {
	var sb strings.Builder
	sb.WriteString("cyclic processor dependency:")
	for _, l := range e.Links {
		fmt.Fprintf(&sb, "\n  %s runs before %s (declared by %s.%s)",
			l.Before.ShortString(), l.After.ShortString(), l.DeclaredBy.ShortString(), l.Declaration)
	}
	return sb.String()
}

// Chain returns the processor classes of the cycle, starting and ending with the same class.
func (e *CycleError) Chain() []ID {
	if len(e.Links) == 0 {
		return nil
	}
	chain := make([]ID, 0, len(e.Links)+1)
	for _, l := range e.Links {
		chain = append(chain, l.Before)
	}
	return append(chain, e.Links[len(e.Links)-1].After)
}

// Sort orders processors so that every UseBefore/UseAfter declaration between
// co-resident processors is honored. Processors without constraints keep
// their relative input order. The result is a permutation of the input.
//
// Sort returns a *CycleError if the declarations cannot be satisfied.
func Sort[C any](procs []Processor[C]) ([]Processor[C], error) {
	s := newSorter(procs)
	for len(s.remaining) > 0 {
		if err := s.place(s.remaining[0]); err != nil {
			return nil, err
		}
	}

	if len(s.result) != len(procs) {
		panic(fmt.Sprintf("processor sort produced %d processors from %d", len(s.result), len(procs)))
	}

	sorted := make([]Processor[C], len(s.result))
	for i, idx := range s.result {
		sorted[i] = procs[idx]
	}
	return sorted, nil
}

// sorter simulates placement: to place a processor, every remaining
// processor that must precede it is placed first. Indices on the stack are
// waiting for their predecessors; meeting one of them again is a cycle.
type sorter[C any] struct {
	procs     []Processor[C]
	ids       []ID
	remaining []int
	result    []int
	stack     []int
	onStack   []bool
}

func newSorter[C any](procs []Processor[C]) *sorter[C] {
	s := &sorter[C]{
		procs:     procs,
		ids:       make([]ID, len(procs)),
		remaining: make([]int, len(procs)),
		result:    make([]int, 0, len(procs)),
		onStack:   make([]bool, len(procs)),
	}
	for i, p := range procs {
		s.ids[i] = IDOf(p)
		s.remaining[i] = i
	}
	return s
}

func (s *sorter[C]) place(i int) error {
	s.stack = append(s.stack, i)
	s.onStack[i] = true
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		s.onStack[i] = false
	}()

	for {
		j, link, found := s.nextPredecessor(i)
		if !found {
			break
		}
		if s.onStack[j] {
			return s.cycle(j, link)
		}
		if err := s.place(j); err != nil {
			return err
		}
	}

	s.remaining = slices.DeleteFunc(s.remaining, func(idx int) bool { return idx == i })
	s.result = append(s.result, i)
	return nil
}

// nextPredecessor returns the first remaining processor that must run before i.
func (s *sorter[C]) nextPredecessor(i int) (int, CycleLink, bool) {
	for _, j := range s.remaining {
		if j == i {
			continue
		}
		if link, ok := s.edge(j, i); ok {
			return j, link, true
		}
	}
	return 0, CycleLink{}, false
}

// edge reports whether processor j must run before processor i.
func (s *sorter[C]) edge(j, i int) (CycleLink, bool) {
	before, after := s.ids[j], s.ids[i]
	if before == after {
		return CycleLink{}, false
	}
	if containsID(s.procs[j].UseBefore(), after) {
		return CycleLink{Before: before, After: after, DeclaredBy: before, Declaration: "UseBefore"}, true
	}
	if containsID(s.procs[i].UseAfter(), before) {
		return CycleLink{Before: before, After: after, DeclaredBy: after, Declaration: "UseAfter"}, true
	}
	return CycleLink{}, false
}

// cycle builds the error for j (already on the stack) having to precede the
// processor on top of the stack.
func (s *sorter[C]) cycle(j int, closing CycleLink) error {
	start := slices.Index(s.stack, j)
	links := []CycleLink{closing}
	for k := len(s.stack) - 1; k > start; k-- {
		link, _ := s.edge(s.stack[k], s.stack[k-1])
		links = append(links, link)
	}
	return &CycleError{Links: links}
}
