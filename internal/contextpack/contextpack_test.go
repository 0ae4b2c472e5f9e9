package contextpack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	pack := Pack{Key: "backend", PathGlob: "internal/**", Lang: "go", Limit: 25, Hybrid: true, BM25: true}
	require.NoError(t, m.Save(pack))

	got, err := m.Load("backend")
	require.NoError(t, err)
	assert.Equal(t, pack, got)
}

func TestLoadUnknownKeyReturnsNotFound(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = m.Load("missing")
	assert.Error(t, err)
}

func TestListReturnsSortedKeysExcludingActiveMarker(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Save(Pack{Key: "zeta"}))
	require.NoError(t, m.Save(Pack{Key: "alpha"}))
	require.NoError(t, m.Apply("alpha", time.Now()))

	keys, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, keys)
}

func TestApplyThenActiveReportsAppliedPack(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Save(Pack{Key: "backend"}))

	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, m.Apply("backend", when))

	active, err := m.Active()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "backend", active.Key)
	assert.Equal(t, "2026-01-02T03:04:05Z", active.AppliedAt)
}

func TestActiveWithNoMarkerReturnsNil(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	active, err := m.Active()
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDeleteClearsActiveMarkerWhenItPointedToDeletedPack(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Save(Pack{Key: "backend"}))
	require.NoError(t, m.Apply("backend", time.Now()))

	require.NoError(t, m.Delete("backend"))

	active, err := m.Active()
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = m.Load("backend")
	assert.Error(t, err)
}
