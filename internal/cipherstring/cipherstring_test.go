package cipherstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() SymmetricKey {
	var k SymmetricKey
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestRoundTrip(t *testing.T) {
	key := testKey()
	cs, err := Encrypt(key, []byte("hunter2"))
	require.NoError(t, err)

	got, err := Decrypt[string](cs, key)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestParseFormatRoundTrip(t *testing.T) {
	key := testKey()
	cs, err := Encrypt(key, []byte("some plaintext"))
	require.NoError(t, err)

	wire := cs.String()
	parsed, err := Parse(wire)
	require.NoError(t, err)
	assert.Equal(t, wire, parsed.String())
}

func TestParseRejectsUnsupportedType(t *testing.T) {
	_, err := Parse("0.aaaa|bbbb|cccc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AES-CBC-256")
}

func TestParseRejectsNoDot(t *testing.T) {
	_, err := Parse("nodot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dot")
}

func TestParseRejectsBadSegments(t *testing.T) {
	_, err := Parse("2.onlyone")
	require.Error(t, err)

	_, err = Parse("2.a|b|c|d")
	require.Error(t, err)
}

func TestMacRejection(t *testing.T) {
	key := testKey()
	cs, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)

	// Flip a bit in the ciphertext segment by mutating the parsed struct directly.
	flipped := cs
	flipped.ciphertext = append([]byte(nil), flipped.ciphertext...)
	flipped.ciphertext[0] ^= 0x01

	_, err = Decrypt[string](flipped, key)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMac)
}

func TestBooleanDecode(t *testing.T) {
	key := testKey()
	csTrue, err := Encrypt(key, []byte("true"))
	require.NoError(t, err)
	got, err := Decrypt[bool](csTrue, key)
	require.NoError(t, err)
	assert.True(t, got)

	csBad, err := Encrypt(key, []byte("nope"))
	require.NoError(t, err)
	_, err = Decrypt[bool](csBad, key)
	require.ErrorIs(t, err, ErrNotBoolean)
}

func TestKeySeparation(t *testing.T) {
	key := testKey()
	assert.NotEqual(t, key.encKey(), key.macKey())
}
