// Package discovery inventories a test group: its test cases and the
// annotations attached to the group and to each test case.
//
// A test group is any value whose method set has exported methods named
// Test*. Each such method is a test case. A group attaches annotations by
// implementing Annotator; the annotations of a type are read once and cached,
// so they must not depend on the state of the value.
//
// Methods promoted from embedded types are test cases of the embedding
// group, and an embedded Annotator is inherited unless the embedding type
// declares its own Annotations method.
package discovery

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// TestPrefix starts the name of every test case method.
const TestPrefix = "Test"

// GroupKey is the Annotations key addressing the group itself.
const GroupKey = ""

// Annotator is implemented by test groups that attach annotations. The map
// is keyed by test method name, or GroupKey for the group.
type Annotator interface {
	Annotations() map[string][]any
}

// ElementKind tells what an annotated element is.
type ElementKind int

const (
	// GroupElement is the test group type.
	GroupElement ElementKind = iota
	// MethodElement is a test case method.
	MethodElement
)

// String returns a human-readable representation of the ElementKind.
func (k ElementKind) String() string {
	switch k {
	case GroupElement:
		return "group"
	case MethodElement:
		return "method"
	default:
		return "unknown"
	}
}

// Element is a program element annotations can be attached to.
type Element struct {
	Kind ElementKind
	Name string
}

func (e Element) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Name)
}

// Case is one discovered test case.
type Case struct {
	Name   string
	method reflect.Method
}

// Element returns the element the test case's annotations are attached to.
func (c Case) Element() Element {
	return Element{Kind: MethodElement, Name: c.Name}
}

// Structure is the discovered description of a test group type.
type Structure struct {
	Type  reflect.Type
	Name  string
	Cases []Case

	annotations map[Element][]any
}

// GroupElement returns the element standing for the group itself.
func (s *Structure) GroupElement() Element {
	return Element{Kind: GroupElement, Name: s.Name}
}

// Elements returns the group element followed by every test case element,
// in name order.
func (s *Structure) Elements() []Element {
	out := make([]Element, 0, len(s.Cases)+1)
	out = append(out, s.GroupElement())
	for _, c := range s.Cases {
		out = append(out, c.Element())
	}
	return out
}

// Annotations returns the annotations attached to e.
func (s *Structure) Annotations(e Element) []any {
	return slices.Clone(s.annotations[e])
}

// Case returns the named test case.
func (s *Structure) Case(name string) (Case, bool) {
	for _, c := range s.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

// Scanner discovers test group structures and caches them per Go type. It
// is safe for concurrent use: concurrent scans of the same type are
// collapsed into one and the first stored structure wins.
type Scanner struct {
	cache  sync.Map // reflect.Type -> *Structure
	flight singleflight.Group
	scans  atomic.Int64
	logger *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets a custom logger for the scanner.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger.With("component", "discovery")
	}
}

// NewScanner creates a scanner with an empty cache.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		logger: slog.Default().With("component", "discovery"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns the structure of group's type, discovering it on first use.
func (s *Scanner) Scan(group any) (*Structure, error) {
	t := reflect.TypeOf(group)
	if t == nil {
		return nil, fmt.Errorf("cannot scan a nil test group")
	}
	if v, ok := s.cache.Load(t); ok {
		return v.(*Structure), nil
	}

	v, err, _ := s.flight.Do(typeKey(t), func() (any, error) {
		// Check the cache again: another flight may have just stored it.
		if v, ok := s.cache.Load(t); ok {
			return v, nil
		}
		st, err := scan(group)
		if err != nil {
			return nil, err
		}
		s.scans.Add(1)
		s.logger.Debug("test group scanned", "group", st.Name, "test_cases", len(st.Cases))
		actual, _ := s.cache.LoadOrStore(t, st)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Structure), nil
}

// Scans returns how many structures were discovered rather than served
// from the cache.
func (s *Scanner) Scans() int64 {
	return s.scans.Load()
}

// typeKey identifies t itself. Type names are not unique: types declared
// in different functions share their package and name.
func typeKey(t reflect.Type) string {
	return fmt.Sprintf("%p", t)
}

func scan(group any) (*Structure, error) {
	t := reflect.TypeOf(group)
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	st := &Structure{
		Type:        t,
		Name:        base.Name(),
		annotations: make(map[Element][]any),
	}
	if st.Name == "" {
		st.Name = t.String()
	}

	// Method set order is lexicographic.
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !isTestName(m.Name) {
			continue
		}
		if err := checkSignature(m); err != nil {
			return nil, fmt.Errorf("test group %s: %w", st.Name, err)
		}
		st.Cases = append(st.Cases, Case{Name: m.Name, method: m})
	}

	if a, ok := group.(Annotator); ok {
		for key, annotations := range a.Annotations() {
			e := st.GroupElement()
			if key != GroupKey {
				c, ok := st.Case(key)
				if !ok {
					return nil, fmt.Errorf("test group %s: annotations for unknown test method %s", st.Name, key)
				}
				e = c.Element()
			}
			st.annotations[e] = append(st.annotations[e], annotations...)
		}
	}
	return st, nil
}

func isTestName(name string) bool {
	return strings.HasPrefix(name, TestPrefix) && len(name) > len(TestPrefix)
}

var errorType = reflect.TypeFor[error]()

func checkSignature(m reflect.Method) error {
	// m.Type includes the receiver.
	mt := m.Type
	switch mt.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if mt.Out(1) == errorType {
			return nil
		}
	}
	return fmt.Errorf("test method %s must return nothing, a value, an error or a value and an error", m.Name)
}
