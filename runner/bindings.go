package runner

import (
	"fmt"
	"reflect"

	"github.com/nomis52/phasetest/discovery"
	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/processors"
)

// Scope restricts the elements an annotation may be attached to.
type Scope int

const (
	// AnyElement allows the test group and its test methods.
	AnyElement Scope = iota
	// GroupOnly allows the test group only.
	GroupOnly
	// MethodOnly allows test methods only.
	MethodOnly
)

// String returns a human-readable representation of the Scope.
func (s Scope) String() string {
	switch s {
	case AnyElement:
		return "any"
	case GroupOnly:
		return "group"
	case MethodOnly:
		return "method"
	default:
		return "unknown"
	}
}

func (s Scope) allows(k discovery.ElementKind) bool {
	switch s {
	case GroupOnly:
		return k == discovery.GroupElement
	case MethodOnly:
		return k == discovery.MethodElement
	default:
		return true
	}
}

// Binding tells which processors consume one annotation type.
//
// An annotation attached to the test group is consumed by the Group
// processor if there is one, otherwise by a Case processor registered on
// every test case. An annotation attached to a test method is consumed by
// the Case processor of that test case if there is one, otherwise by a Group
// processor. Created processors must implement processors.Consumer.
type Binding struct {
	Scope Scope
	Group func() engine.GroupProcessor
	Case  func() engine.CaseProcessor
}

// Bindings maps annotation types to the processors consuming them.
type Bindings map[reflect.Type]Binding

// DefaultBindings returns the bindings of the built-in annotations.
func DefaultBindings() Bindings {
	return Bindings{
		reflect.TypeFor[processors.Rows](): {
			Scope: MethodOnly,
			Case:  func() engine.CaseProcessor { return &processors.RowSetter{} },
		},
		reflect.TypeFor[processors.ExpectError](): {
			Case: func() engine.CaseProcessor { return &processors.ErrorExpectation{} },
		},
		reflect.TypeFor[processors.Precondition](): {
			Group: func() engine.GroupProcessor { return &processors.GroupPreconditionCheck{} },
			Case:  func() engine.CaseProcessor { return &processors.PreconditionCheck{} },
		},
		reflect.TypeFor[processors.Exclude](): {
			Group: func() engine.GroupProcessor { return &processors.Excluder{} },
		},
	}
}

// Bind adds or replaces the binding of the annotation type of sample.
func (b Bindings) Bind(sample any, binding Binding) {
	b[reflect.TypeOf(sample)] = binding
}

// plan holds the processors created for the annotations of one test group.
type plan struct {
	group []engine.GroupProcessor
	// every holds case processors consuming group annotations, registered
	// on every test case.
	every []engine.CaseProcessor
	cases map[string][]engine.CaseProcessor
}

type instanceKey struct {
	element discovery.Element
	class   processor.ID
}

// newPlan creates one processor per element and processor class and hands
// it every annotation of that element it consumes.
func newPlan(st *discovery.Structure, bindings Bindings) (*plan, error) {
	p := &plan{cases: make(map[string][]engine.CaseProcessor)}
	consumers := make(map[instanceKey]processors.Consumer)

	for _, e := range st.Elements() {
		for _, annotation := range st.Annotations(e) {
			t := reflect.TypeOf(annotation)
			b, ok := bindings[t]
			if !ok {
				return nil, fmt.Errorf("%s: no processor consumes annotation %s", e, t)
			}
			if !b.Scope.allows(e.Kind) {
				return nil, fmt.Errorf("%s: annotation %s can only be attached to %s elements", e, t, b.Scope)
			}

			c, err := p.consumer(e, b, consumers)
			if err != nil {
				return nil, fmt.Errorf("%s: annotation %s: %w", e, t, err)
			}
			if err := c.Apply(e, annotation); err != nil {
				return nil, fmt.Errorf("%s: %w", e, err)
			}
		}
	}
	return p, nil
}

// consumer returns the processor consuming annotations bound by b on e,
// creating and placing it on first use.
func (p *plan) consumer(e discovery.Element, b Binding, consumers map[instanceKey]processors.Consumer) (processors.Consumer, error) {
	onGroup := e.Kind == discovery.GroupElement
	useGroup := b.Group != nil && (onGroup || b.Case == nil)

	var created any
	var place func()
	switch {
	case useGroup:
		gp := b.Group()
		created, place = gp, func() { p.group = append(p.group, gp) }
	case b.Case != nil && onGroup:
		cp := b.Case()
		created, place = cp, func() { p.every = append(p.every, cp) }
	case b.Case != nil:
		cp := b.Case()
		created, place = cp, func() { p.cases[e.Name] = append(p.cases[e.Name], cp) }
	default:
		return nil, fmt.Errorf("binding creates no processor")
	}

	key := instanceKey{element: e, class: processor.IDOf(created)}
	if c, ok := consumers[key]; ok {
		return c, nil
	}
	c, ok := created.(processors.Consumer)
	if !ok {
		return nil, fmt.Errorf("processor %T does not consume annotations", created)
	}
	consumers[key] = c
	place()
	return c, nil
}

// forCase returns the annotation processors of the named test case.
func (p *plan) forCase(name string) []engine.CaseProcessor {
	out := make([]engine.CaseProcessor, 0, len(p.every)+len(p.cases[name]))
	out = append(out, p.every...)
	return append(out, p.cases[name]...)
}
