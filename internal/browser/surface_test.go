package browser

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/mapscrap/internal/locator"
)

func TestListingHandle(t *testing.T) {
	h := NewListingHandle("sess-1", 4)
	assert.Equal(t, 4, h.Index())
	assert.Equal(t, "sess-1", h.Session())
	assert.Equal(t, "listing[4]@sess-1", h.String())
}

func TestListingHandle_Comparable(t *testing.T) {
	assert.Equal(t, NewListingHandle("a", 1), NewListingHandle("a", 1))
	assert.NotEqual(t, NewListingHandle("a", 1), NewListingHandle("b", 1))
}

func TestErrSurfaceLost_SurvivesWrapping(t *testing.T) {
	err := eris.Wrap(ErrSurfaceLost, "websocket closed")
	assert.True(t, eris.Is(err, ErrSurfaceLost))
	assert.False(t, eris.Is(err, ErrNotFound))
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, "en-GB", o.Locale)
	assert.Equal(t, "https://www.google.com/maps", o.StartURL)
	assert.Equal(t, 30*time.Second, o.ActionTimeout)
	assert.Equal(t, 2*time.Second, o.LookupTimeout)

	o = Options{Locale: "es-ES", ActionTimeout: time.Second}.withDefaults()
	assert.Equal(t, "es-ES", o.Locale)
	assert.Equal(t, time.Second, o.ActionTimeout)
}

func TestChrome_ActivateRejectsForeignHandle(t *testing.T) {
	c := &Chrome{session: "mine", table: locator.Default()}
	err := c.Activate(t.Context(), NewListingHandle("theirs", 0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "another session")
}
