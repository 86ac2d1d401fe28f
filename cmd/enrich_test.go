package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapscrap/internal/export"
	"github.com/sells-group/mapscrap/internal/model"
	"github.com/sells-group/mapscrap/internal/pipeline"
)

type fakeEnrichFunc func(website string) model.ContactResult

func (f fakeEnrichFunc) Enrich(_ context.Context, website string) model.ContactResult {
	return f(website)
}

func TestEnrichedPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("out", "cafes_enriched.csv"), enrichedPath(filepath.Join("out", "cafes.csv")))
	assert.Equal(t, "cafes_enriched.csv", enrichedPath("cafes.xlsx"))
	assert.Equal(t, "cafes_enriched.csv", enrichedPath("cafes"))
}

func TestEnrichFileTo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "cafes.csv")
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, export.WriteCSV(f, []model.Business{
		{Name: "Cafe Uno", Website: "https://uno.es"},
		{Name: "Cafe Dos"},
	}))
	require.NoError(t, f.Close())

	p := pipeline.New(nil, nil, fakeEnrichFunc(func(website string) model.ContactResult {
		return model.ContactResult{Email: "hola@" + strings.TrimPrefix(website, "https://")}
	}))

	out := enrichedPath(in)
	res, err := enrichFileTo(t.Context(), p, in, out, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Emails)

	g, err := os.Open(out)
	require.NoError(t, err)
	defer g.Close() //nolint:errcheck
	got, err := export.ReadCSV(g)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hola@uno.es", got[0].Contact.Email)
	assert.Empty(t, got[1].Contact.Email)
}

func TestEnrichFileTo_XLSXInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "gyms.xlsx")
	require.NoError(t, export.WriteXLSX(in, []model.Business{{Name: "Gym", Website: "https://gym.es"}}))

	p := pipeline.New(nil, nil, fakeEnrichFunc(func(string) model.ContactResult {
		return model.ContactResult{InstagramUsername: "gym"}
	}))

	out := filepath.Join(dir, "out.csv")
	res, err := enrichFileTo(t.Context(), p, in, out, 1)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 1)
	assert.Equal(t, "gym", res.Businesses[0].Contact.InstagramUsername)
	assert.FileExists(t, out)
}

func TestEnrichFileTo_EmptyInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(in, []byte(strings.Join(export.Columns, ",")+"\n"), 0o644))

	p := pipeline.New(nil, nil, fakeEnrichFunc(func(string) model.ContactResult { return model.ContactResult{} }))
	_, err := enrichFileTo(t.Context(), p, in, filepath.Join(dir, "out.csv"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no businesses")
}
