package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	rec := Record{RefreshToken: "RRR", Iterations: 100000}
	Store(path, "a@b", "pw", rec)

	got := Load(path, "a@b", "pw")
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, Load(filepath.Join(dir, "missing"), "a@b", "pw"))
}

func TestLoadWrongPasswordReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	Store(path, "a@b", "correct-horse", Record{RefreshToken: "RRR", Iterations: 100000})

	assert.Nil(t, Load(path, "a@b", "wrong-password"))
}

func TestStoreProducesDistinctNonces(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "one")
	p2 := filepath.Join(dir, "two")

	rec := Record{RefreshToken: "RRR", Iterations: 100000}
	Store(p1, "a@b", "pw", rec)
	Store(p2, "a@b", "pw", rec)

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)

	assert.NotEqual(t, b1, b2, "two stores of identical plaintext must use distinct nonces")
}
