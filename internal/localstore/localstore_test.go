package localstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	_, ok := s.Get(KeyPlan)
	assert.False(t, ok)

	require.NoError(t, s.Set(KeyPlan, "pro"))
	require.NoError(t, s.Set(KeyCredits, "150"))

	// Values survive a reopen.
	s2, err := Open(dir)
	require.NoError(t, err)

	v, ok := s2.Get(KeyPlan)
	assert.True(t, ok)
	assert.Equal(t, "pro", v)

	require.NoError(t, s2.Delete(KeyPlan))
	_, ok = s2.Get(KeyPlan)
	assert.False(t, ok)
}

func TestStoreSurvivesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/localstore.json", []byte("{not json"), 0644))

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))

	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
