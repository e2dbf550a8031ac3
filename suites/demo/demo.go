// Package demo provides small test groups for trying phaserun and for
// exercising the status reporting and the server.
package demo

import (
	"github.com/nomis52/phasetest/suites"
)

// Register adds the demo test groups to c.
func Register(c *suites.Catalog) error {
	for name, f := range map[string]suites.Factory{
		"arithmetic": func() any { return &Arithmetic{} },
		"strings":    func() any { return &Strings{} },
		"steps":      func() any { return &Steps{Delay: stepDelay} },
	} {
		if err := c.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}
