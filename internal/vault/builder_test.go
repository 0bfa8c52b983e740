package vault

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rofi-bw/rofi-bw-go/internal/cipherstring"
	"github.com/rofi-bw/rofi-bw-go/internal/masterkey"
)

func encryptToWire(t *testing.T, key cipherstring.SymmetricKey, plaintext string) string {
	t.Helper()
	cs, err := cipherstring.Encrypt(key, []byte(plaintext))
	require.NoError(t, err)
	return cs.String()
}

func buildTestAccountJSON(t *testing.T, accountKey cipherstring.SymmetricKey, stretched cipherstring.SymmetricKey) (string, uuid.UUID, uuid.UUID) {
	t.Helper()

	var accountKeyBytes [64]byte
	copy(accountKeyBytes[:], accountKey[:])
	profileKey := encryptToWire(t, stretched, string(accountKeyBytes[:]))

	folderID := uuid.New()
	loginID := uuid.New()
	orphanID := uuid.New()

	account := fmt.Sprintf(`{
		"profile": {"key": %q},
		"folders": [{"id": %q, "name": %q}],
		"ciphers": [
			{
				"id": %q, "folderId": %q, "type": 1, "name": %q,
				"favorite": true, "deletedDate": null, "reprompt": 0,
				"login": {"username": %q, "password": %q, "uris": []}
			},
			{
				"id": %q, "folderId": null, "type": 1, "name": %q,
				"favorite": false, "deletedDate": null, "reprompt": 0,
				"login": {"username": %q, "password": %q, "uris": []}
			}
		]
	}`,
		profileKey,
		folderID, encryptToWire(t, accountKey, "Work"),
		loginID, folderID, encryptToWire(t, accountKey, "GitHub"),
		encryptToWire(t, accountKey, "alice"), encryptToWire(t, accountKey, "hunter2"),
		orphanID, encryptToWire(t, accountKey, "Orphan Site"),
		encryptToWire(t, accountKey, "bob"), encryptToWire(t, accountKey, "swordfish"),
	)

	var js map[string]any
	require.NoError(t, json.Unmarshal([]byte(account), &js))
	return account, loginID, orphanID
}

func TestBuildVaultIndices(t *testing.T) {
	mk := masterkey.Derive("pw", "a@b", 100000)
	stretched := masterkey.StretchMaster(mk)

	var accountKey cipherstring.SymmetricKey
	for i := range accountKey {
		accountKey[i] = byte(i + 1)
	}

	account, loginID, orphanID := buildTestAccountJSON(t, accountKey, stretched)

	v, warnings, err := Build(account, mk)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, v.Ciphers, 2)
	assert.Len(t, v.All, 2)
	assert.Empty(t, v.Trash)
	assert.Len(t, v.Favourites, 1)

	// every cipher appears in exactly one folder's contents
	total := 0
	for _, f := range v.Folders {
		total += len(f.Contents)
	}
	assert.Equal(t, len(v.Ciphers), total)

	// "No folder" sorts last
	assert.Nil(t, v.Folders[len(v.Folders)-1].ID)

	ids := map[uuid.UUID]bool{}
	for _, c := range v.Ciphers {
		ids[c.ID] = true
	}
	assert.True(t, ids[loginID])
	assert.True(t, ids[orphanID])
}

func TestBuildVaultWrongMasterPassword(t *testing.T) {
	mk := masterkey.Derive("pw", "a@b", 100000)
	stretched := masterkey.StretchMaster(mk)

	var accountKey cipherstring.SymmetricKey
	account, _, _ := buildTestAccountJSON(t, accountKey, stretched)

	wrongMK := masterkey.Derive("different", "a@b", 100000)
	_, _, err := Build(account, wrongMK)
	require.ErrorIs(t, err, ErrWrongMasterPassword)
}
