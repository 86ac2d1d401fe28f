package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapscrap/internal/model"
)

func TestStore_AddIsIdempotent(t *testing.T) {
	s := New()
	b := model.Business{Name: "Cafe Uno", Website: "https://uno.es", Domain: "uno.es", Phone: "+34 600"}

	assert.True(t, s.Add(b))
	assert.Equal(t, 1, s.Len())

	assert.False(t, s.Add(b))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Rejected())
}

func TestStore_FirstWriterWins(t *testing.T) {
	s := New()
	first := model.Business{Name: "Cafe Uno", Phone: "+34 600", Address: "Carrer 1"}
	second := model.Business{Name: "Cafe Uno", Phone: "+34 600", Address: "Carrer 2", ReviewsCount: model.IntPtr(9)}

	require.True(t, s.Add(first))
	require.False(t, s.Add(second))

	got := s.Businesses()
	require.Len(t, got, 1)
	assert.Equal(t, "Carrer 1", got[0].Address)
	assert.Nil(t, got[0].ReviewsCount)
}

func TestStore_PreservesDiscoveryOrder(t *testing.T) {
	s := New()
	names := []string{"Zeta", "Alpha", "Mid", "Alpha", "Beta"}
	for _, n := range names {
		s.Add(model.Business{Name: n})
	}

	var got []string
	for _, b := range s.Businesses() {
		got = append(got, b.Name)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid", "Beta"}, got)
}

func TestStore_KeysAreUnique(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.Add(model.Business{Name: "A", Domain: "a.com"})
		s.Add(model.Business{Name: "A", Domain: "b.com"})
		s.Add(model.Business{Name: "A"})
	}

	seen := make(map[model.IdentityKey]bool)
	for _, b := range s.Businesses() {
		key := model.KeyOf(b)
		assert.False(t, seen[key], "duplicate key %+v", key)
		seen[key] = true
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 6, s.Rejected())
}

func TestStore_KeyOnlyFieldsDecide(t *testing.T) {
	s := New()
	b := model.Business{Name: "Cafe Uno", Address: "Carrer 1"}
	assert.True(t, s.Add(b))

	b.Address = "Carrer 2"
	assert.False(t, s.Add(b))
	assert.Equal(t, "Carrer 1", s.Businesses()[0].Address)
	assert.Equal(t, 1, s.Rejected())
}

func TestStore_BusinessesReturnsCopy(t *testing.T) {
	s := New()
	s.Add(model.Business{Name: "Cafe Uno"})

	out := s.Businesses()
	out[0].Name = "mutated"

	assert.Equal(t, "Cafe Uno", s.Businesses()[0].Name)
}
