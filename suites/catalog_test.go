package suites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

func TestCatalog_Register(t *testing.T) {
	tests := []struct {
		name    string
		group   string
		factory Factory
		wantErr string
	}{
		{name: "valid", group: "b", factory: func() any { return &counter{} }},
		{name: "empty name", group: "", factory: func() any { return &counter{} }, wantErr: "cannot be empty"},
		{name: "nil factory", group: "c", wantErr: `test group "c" has no factory`},
		{name: "duplicate", group: "a", factory: func() any { return &counter{} }, wantErr: `test group "a" registered twice`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog()
			c.MustRegister("a", func() any { return &counter{} })

			err := c.Register(tt.group, tt.factory)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCatalog_MustRegisterPanics(t *testing.T) {
	c := NewCatalog()
	c.MustRegister("a", func() any { return &counter{} })
	assert.Panics(t, func() { c.MustRegister("a", func() any { return &counter{} }) })
}

func TestCatalog_New(t *testing.T) {
	c := NewCatalog()
	c.MustRegister("counter", func() any { return &counter{} })

	first, err := c.New("counter")
	require.NoError(t, err)
	first.(*counter).n = 5

	second, err := c.New("counter")
	require.NoError(t, err)
	assert.Equal(t, 0, second.(*counter).n, "every call creates a fresh group")

	_, err = c.New("missing")
	assert.EqualError(t, err, `unknown test group "missing"`)
}

func TestCatalog_Groups(t *testing.T) {
	c := NewCatalog()
	c.MustRegister("zeta", func() any { return &counter{n: 26} })
	c.MustRegister("alpha", func() any { return &counter{n: 1} })

	assert.Equal(t, []string{"alpha", "zeta"}, c.Names())
	assert.Equal(t, map[string]bool{"alpha": true, "zeta": true}, c.Available())

	all, err := c.Groups()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].(*counter).n)

	some, err := c.Groups("zeta")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, 26, some[0].(*counter).n)

	_, err = c.Groups("alpha", "nope")
	assert.Error(t, err)
}
