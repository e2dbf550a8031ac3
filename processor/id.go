package processor

import (
	"fmt"
	"reflect"
	"strings"
)

// ID identifies a processor class: the concrete Go type of a processor.
// It combines the full import path with the type name so that processors with
// the same name in different packages stay distinct.
//
// Ordering declarations (UseBefore/UseAfter) and duplicate detection are
// expressed in terms of IDs, never in terms of instances.
type ID struct {
	// Module is the import path of the package declaring the processor type.
	// Example: "github.com/nomis52/phasetest/processors"
	Module string

	// Type is the name of the processor type, with any pointer stripped.
	// Example: "Invoker"
	Type string
}

// IDOf returns the ID of the concrete type of v.
func IDOf(v any) ID {
	return idOfType(reflect.TypeOf(v))
}

// IDFor returns the ID of the type parameter T. Both IDFor[Invoker] and
// IDFor[*Invoker] name the same processor class.
func IDFor[T any]() ID {
	return idOfType(reflect.TypeFor[T]())
}

func idOfType(t reflect.Type) ID {
	if t == nil {
		return ID{}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return ID{
		Module: t.PkgPath(),
		Type:   t.Name(),
	}
}

// String returns "Module.Type".
//
// Example: "github.com/nomis52/phasetest/processors.Invoker"
func (id ID) String() string {
	return fmt.Sprintf("%s.%s", id.Module, id.Type)
}

// IsValid returns true if the ID has both Module and Type populated.
func (id ID) IsValid() bool {
	return id.Module != "" && id.Type != ""
}

// ShortString returns the last component of the module path plus the type,
// for logs and reports.
//
// Example: "github.com/nomis52/phasetest/processors.Invoker" becomes "processors.Invoker"
func (id ID) ShortString() string {
	if id.Module == "" {
		return id.Type
	}
	pkg := id.Module
	if i := strings.LastIndex(pkg, "/"); i >= 0 && i < len(pkg)-1 {
		pkg = pkg[i+1:]
	}
	return fmt.Sprintf("%s.%s", pkg, id.Type)
}

func containsID(ids []ID, id ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
