package processor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort(t *testing.T) {
	tests := []struct {
		name  string
		procs func() []Processor[*fakeContext]
		want  []ID
	}{
		{
			name:  "empty",
			procs: func() []Processor[*fakeContext] { return nil },
			want:  []ID{},
		},
		{
			name: "unconstrained keeps input order",
			procs: func() []Processor[*fakeContext] {
				return []Processor[*fakeContext]{&procC{}, &procA{}, &procB{}}
			},
			want: []ID{idC, idA, idB},
		},
		{
			name: "use before moves processor ahead",
			procs: func() []Processor[*fakeContext] {
				return []Processor[*fakeContext]{
					&procA{},
					&procB{fake{before: []ID{idA}}},
				}
			},
			want: []ID{idB, idA},
		},
		{
			name: "use after moves processor behind",
			procs: func() []Processor[*fakeContext] {
				return []Processor[*fakeContext]{
					&procA{fake{after: []ID{idB}}},
					&procB{},
					&procC{},
				}
			},
			want: []ID{idB, idA, idC},
		},
		{
			name: "transitive chain",
			procs: func() []Processor[*fakeContext] {
				return []Processor[*fakeContext]{
					&procA{fake{after: []ID{idB}}},
					&procB{fake{after: []ID{idC}}},
					&procC{fake{after: []ID{idD}}},
					&procD{},
				}
			},
			want: []ID{idD, idC, idB, idA},
		},
		{
			name: "declarations about absent classes are ignored",
			procs: func() []Processor[*fakeContext] {
				return []Processor[*fakeContext]{
					&procA{fake{after: []ID{idD}}},
					&procB{fake{before: []ID{idC}}},
				}
			},
			want: []ID{idA, idB},
		},
		{
			name: "duplicates of one class are kept",
			procs: func() []Processor[*fakeContext] {
				return []Processor[*fakeContext]{
					&procA{},
					&procB{fake{before: []ID{idA}}},
					&procA{},
				}
			},
			want: []ID{idB, idA, idA},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.procs()
			sorted, err := Sort(input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(sorted))
			assert.ElementsMatch(t, input, sorted, "sort must be a permutation")
		})
	}
}

func TestSort_HonorsEveryEdge(t *testing.T) {
	input := []Processor[*fakeContext]{
		&procD{fake{after: []ID{idA}}},
		&procC{fake{before: []ID{idD}, after: []ID{idB}}},
		&procB{},
		&procA{fake{before: []ID{idB}}},
	}

	sorted, err := Sort(input)
	require.NoError(t, err)

	pos := make(map[ID]int)
	for i, id := range ids(sorted) {
		pos[id] = i
	}
	assert.Less(t, pos[idA], pos[idD])
	assert.Less(t, pos[idC], pos[idD])
	assert.Less(t, pos[idB], pos[idC])
	assert.Less(t, pos[idA], pos[idB])
	assert.Len(t, sorted, len(input))
}

func TestSort_Cycle(t *testing.T) {
	t.Run("two processors", func(t *testing.T) {
		input := []Processor[*fakeContext]{
			&procA{fake{before: []ID{idB}}},
			&procB{fake{before: []ID{idA}}},
		}

		_, err := Sort(input)
		require.Error(t, err)

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		chain := cycleErr.Chain()
		assert.Equal(t, chain[0], chain[len(chain)-1], "chain must close")
		assert.Len(t, cycleErr.Links, 2)
		assert.Contains(t, err.Error(), "processor.procA runs before processor.procB")
		assert.Contains(t, err.Error(), "UseBefore")
	})

	t.Run("mixed declarations", func(t *testing.T) {
		input := []Processor[*fakeContext]{
			&procA{fake{after: []ID{idC}}},
			&procB{fake{after: []ID{idA}}},
			&procC{fake{after: []ID{idB}}},
		}

		_, err := Sort(input)
		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Len(t, cycleErr.Links, 3)
		for _, l := range cycleErr.Links {
			assert.Equal(t, "UseAfter", l.Declaration)
			assert.Equal(t, l.After, l.DeclaredBy)
		}
		assert.ElementsMatch(t, []ID{idA, idB, idC}, cycleErr.Chain()[:3])
	})

	t.Run("cycle behind an unrelated head", func(t *testing.T) {
		input := []Processor[*fakeContext]{
			&procD{},
			&procA{fake{before: []ID{idB}}},
			&procB{fake{after: []ID{idC}}},
			&procC{fake{after: []ID{idB}}},
		}

		_, err := Sort(input)
		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.NotContains(t, cycleErr.Chain(), idD)
	})
}
