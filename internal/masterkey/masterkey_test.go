package masterkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveDeterministic(t *testing.T) {
	a := Derive("pw", "a@b", 100000)
	b := Derive("pw", "A@B", 100000)
	assert.Equal(t, a, b, "email lowercasing must be applied before derivation")
}

func TestStretchKeySeparation(t *testing.T) {
	mk := Derive("pw", "a@b", 100000)
	sk := StretchMaster(mk)

	require.NotEqual(t, sk[:32], sk[32:], "enc key and mac key must differ")

	sk2 := StretchMaster(mk)
	assert.Equal(t, sk, sk2, "stretching is deterministic for the same master key")
}

func TestPasswordHashDeterministic(t *testing.T) {
	mk := Derive("pw", "a@b", 100000)
	h1 := PasswordHash(mk, "pw")
	h2 := PasswordHash(mk, "pw")
	assert.Equal(t, h1, h2)
}

func TestDropZeroes(t *testing.T) {
	mk := Derive("pw", "a@b", 100000)
	mk.Drop()
	var zero MasterKey
	assert.Equal(t, zero, mk)
}
