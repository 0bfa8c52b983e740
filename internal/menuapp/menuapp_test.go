package menuapp

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rofi-bw/rofi-bw-go/internal/cipherstring"
	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
	"github.com/rofi-bw/rofi-bw-go/internal/masterkey"
	"github.com/rofi-bw/rofi-bw-go/internal/vault"
	"github.com/rofi-bw/rofi-bw-go/internal/view"
)

func encryptToWire(t *testing.T, key cipherstring.SymmetricKey, plaintext string) string {
	t.Helper()
	cs, err := cipherstring.Encrypt(key, []byte(plaintext))
	require.NoError(t, err)
	return cs.String()
}

// buildFixture is a smaller version of internal/vault's own test fixture:
// one folder holding one login, and no orphaned login.
func buildFixture(t *testing.T) (accountJSON string, mk masterkey.MasterKey, folderID, loginID uuid.UUID) {
	t.Helper()

	mk = masterkey.Derive("pw", "a@b", 100000)
	stretched := masterkey.StretchMaster(mk)

	var accountKey cipherstring.SymmetricKey
	for i := range accountKey {
		accountKey[i] = byte(i + 1)
	}
	var accountKeyBytes [64]byte
	copy(accountKeyBytes[:], accountKey[:])
	profileKey := encryptToWire(t, stretched, string(accountKeyBytes[:]))

	folderID = uuid.New()
	loginID = uuid.New()

	accountJSON = fmt.Sprintf(`{
		"profile": {"key": %q},
		"folders": [{"id": %q, "name": %q}],
		"ciphers": [
			{
				"id": %q, "folderId": %q, "type": 1, "name": %q,
				"favorite": false, "deletedDate": null, "reprompt": 0,
				"login": {"username": %q, "password": %q, "uris": []}
			}
		]
	}`,
		profileKey,
		folderID, encryptToWire(t, accountKey, "Work"),
		loginID, folderID, encryptToWire(t, accountKey, "GitHub"),
		encryptToWire(t, accountKey, "alice"), encryptToWire(t, accountKey, "hunter2"),
	)

	var js map[string]any
	require.NoError(t, json.Unmarshal([]byte(accountJSON), &js))
	return accountJSON, mk, folderID, loginID
}

func handshakeFor(t *testing.T, accountJSON string, mk masterkey.MasterKey) ipc.Handshake {
	t.Helper()
	var raw [32]byte
	copy(raw[:], mk[:])
	return ipc.Handshake{MasterKey: raw, Data: []byte(accountJSON)}
}

func TestBuildDecryptsVault(t *testing.T) {
	accountJSON, mk, _, loginID := buildFixture(t)

	app, err := Build(handshakeFor(t, accountJSON, mk))
	require.NoError(t, err)
	assert.Empty(t, app.Warnings)
	require.Len(t, app.Vault.Ciphers, 1)
	assert.Equal(t, loginID, app.Vault.Ciphers[0].ID)
}

func TestNavigateAndParent(t *testing.T) {
	accountJSON, mk, folderID, _ := buildFixture(t)

	app, err := Build(handshakeFor(t, accountJSON, mk))
	require.NoError(t, err)

	folderIdx, ok := app.Vault.FolderIndexByID(folderID)
	require.True(t, ok)

	app.Navigate(view.NewFolder(folderIdx))
	assert.True(t, app.History.Current().IsFolder())

	app.Parent()
	cur := app.History.Current()
	require.True(t, cur.IsList())
	assert.Equal(t, view.ListFolders, cur.List().Kind)
}

func TestExportImportHistoryRoundTrip(t *testing.T) {
	accountJSON, mk, folderID, loginID := buildFixture(t)

	app, err := Build(handshakeFor(t, accountJSON, mk))
	require.NoError(t, err)

	folderIdx, ok := app.Vault.FolderIndexByID(folderID)
	require.True(t, ok)
	cipherIdx, ok := app.Vault.CipherIndexByID(loginID)
	require.True(t, ok)

	app.Navigate(view.NewFolder(folderIdx))
	app.Navigate(view.NewCipher(cipherIdx))

	portable := app.ExportHistory()
	require.Len(t, portable.Stack, 3)
	assert.Equal(t, ipc.PVCipher, portable.Stack[2].Kind)

	restored := importHistory(portable, app.Vault)
	assert.Equal(t, app.History.Current(), restored.Current())
}

func TestImportHistoryFallsBackOnUnresolvedUUID(t *testing.T) {
	accountJSON, mk, _, _ := buildFixture(t)

	app, err := Build(handshakeFor(t, accountJSON, mk))
	require.NoError(t, err)

	ph := ipc.PortableHistory{
		Stack:  []ipc.PortableView{{Kind: ipc.PVCipher, UUID: [16]byte{1, 2, 3}}},
		Cursor: 0,
	}
	restored := importHistory(ph, app.Vault)
	cur := restored.Current()
	require.True(t, cur.IsList())
	assert.Equal(t, view.ListAll, cur.List().Kind)
}

func TestCopyRequestRejectsNonCopyAction(t *testing.T) {
	f := vault.Field{Display: "Linked field", Action: &vault.Action{Kind: vault.ActionLink}}
	_, err := CopyRequest("GitHub", f, false, ipc.MenuState{})
	assert.Error(t, err)
}

func TestCopyRequestSetsRepromptOnlyForHiddenFields(t *testing.T) {
	hidden := vault.Field{Action: &vault.Action{Kind: vault.ActionCopy, Data: "secret", Hidden: true}}
	req, err := CopyRequest("GitHub", hidden, true, ipc.MenuState{})
	require.NoError(t, err)
	assert.True(t, req.Reprompt)

	visible := vault.Field{Action: &vault.Action{Kind: vault.ActionCopy, Data: "alice", Hidden: false}}
	req2, err := CopyRequest("GitHub", visible, true, ipc.MenuState{})
	require.NoError(t, err)
	assert.False(t, req2.Reprompt)
}
