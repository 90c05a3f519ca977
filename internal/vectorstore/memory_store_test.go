package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Search(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Add(
		Document{ID: "clients", Content: "clients", Vector: []float64{1, 0, 0}},
		Document{ID: "tasks", Content: "tasks", Vector: []float64{0, 1, 0}},
		Document{ID: "mixed", Content: "mixed", Vector: []float64{1, 1, 0}},
	))
	assert.Equal(t, 3, s.Count())

	results, err := s.Search([]float64{1, 0.1, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "clients", results[0].Document.ID)
	assert.Equal(t, "mixed", results[1].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	none, err := s.Search([]float64{0, 0, 1}, 3, 0.1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Validation(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.Add(Document{Vector: []float64{1}}))
	assert.Error(t, s.Add(Document{ID: "a"}))

	require.NoError(t, s.Add(Document{ID: "a", Vector: []float64{1, 0}}))
	assert.Error(t, s.Add(Document{ID: "b", Vector: []float64{1, 0, 0}}))

	_, err := s.Search(nil, 1, 0)
	assert.Error(t, err)
	_, err = s.Search([]float64{1}, 1, 0)
	assert.Error(t, err)
}
