package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rofi-bw/rofi-bw-go/internal/cipherstring"
	"github.com/rofi-bw/rofi-bw-go/internal/masterkey"
	"github.com/rofi-bw/rofi-bw-go/internal/view"
)

// ErrWrongMasterPassword is returned when the profile key fails to decrypt
// under the stretched master key, distinguished from a generic MAC
// failure elsewhere in the vault.
var ErrWrongMasterPassword = errors.New("wrong master password")

// noFolderName is the synthetic folder's display name; it is never sorted
// with the rest.
const noFolderName = "No folder"

// Build decrypts accountJSON under masterKey and constructs a Vault.
// Decryption failures on individual ciphers/folders are collected and
// returned as warnings, non-fatal: the menu renders whatever succeeded.
// A failure decrypting the profile key, or a cipher referencing an
// unknown folder, is fatal.
func Build(accountJSON string, masterKey masterkey.MasterKey) (*Vault, []error, error) {
	var raw rawAccount
	if err := json.Unmarshal([]byte(accountJSON), &raw); err != nil {
		return nil, nil, fmt.Errorf("decode account json: %w", err)
	}

	stretched := masterkey.StretchMaster(masterKey)

	accountKeyBytes, err := cipherstring.Decrypt[[]byte](raw.Profile.Key, stretched)
	if err != nil {
		return nil, nil, ErrWrongMasterPassword
	}
	if len(accountKeyBytes) != 64 {
		return nil, nil, fmt.Errorf("account key has unexpected length %d", len(accountKeyBytes))
	}
	var accountKey cipherstring.SymmetricKey
	copy(accountKey[:], accountKeyBytes)

	var warnings []error
	var warnMu sync.Mutex
	warn := func(err error) {
		warnMu.Lock()
		warnings = append(warnings, err)
		warnMu.Unlock()
	}

	folders, folderIDToIndex, noFolderIdx := buildFolders(raw.Folders, accountKey, warn)

	// Parallel fill into a preallocated slice of *Cipher preserves input
	// order without synchronization; a nil entry means the cipher was
	// skipped (unsupported type) or failed to decrypt and is dropped from
	// the final slice below.
	slots := make([]*Cipher, len(raw.Ciphers))
	var wg sync.WaitGroup
	for i := range raw.Ciphers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc := raw.Ciphers[i]
			ct, ok := cipherType(rc.Type)
			if !ok {
				warn(fmt.Errorf("cipher %s: skipping unrecognized type %d", rc.ID, rc.Type))
				return
			}
			c, err := decryptCipher(rc, ct, accountKey)
			if err != nil {
				warn(fmt.Errorf("cipher %s: %w", rc.ID, err))
				return
			}
			slots[i] = &c
		}(i)
	}
	wg.Wait()

	ciphers := make([]Cipher, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			ciphers = append(ciphers, *s)
		}
	}

	collator := collate.New(language.Und)
	sort.SliceStable(ciphers, func(i, j int) bool {
		if cmp := collator.CompareString(ciphers[i].Name, ciphers[j].Name); cmp != 0 {
			return cmp < 0
		}
		return idLess(ciphers[i].ID, ciphers[j].ID)
	})

	v := &Vault{
		Ciphers:         ciphers,
		Folders:         folders,
		TypeBucket:      map[view.CipherType][]view.CipherIndex{},
		folderIDToIndex: folderIDToIndex,
		noFolderIndex:   noFolderIdx,
	}

	if err := v.buildIndices(); err != nil {
		return nil, warnings, err
	}

	return v, warnings, nil
}

func buildFolders(raw []rawFolder, key cipherstring.SymmetricKey, warn func(error)) ([]Folder, map[uuid.UUID]view.FolderIndex, view.FolderIndex) {
	decrypted := make([]Folder, len(raw))
	var wg sync.WaitGroup
	for i := range raw {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, err := cipherstring.Decrypt[string](raw[i].Name, key)
			if err != nil {
				warn(fmt.Errorf("folder %s: %w", raw[i].ID, err))
				name = "(failed to decrypt)"
			}
			id := raw[i].ID
			decrypted[i] = Folder{ID: &id, Name: name}
		}(i)
	}
	wg.Wait()

	collator := collate.New(language.Und)
	sort.SliceStable(decrypted, func(i, j int) bool {
		if cmp := collator.CompareString(decrypted[i].Name, decrypted[j].Name); cmp != 0 {
			return cmp < 0
		}
		return idLess(*decrypted[i].ID, *decrypted[j].ID)
	})

	// The synthetic "No folder" bucket always sorts last.
	decrypted = append(decrypted, Folder{ID: nil, Name: noFolderName})

	idToIndex := make(map[uuid.UUID]view.FolderIndex, len(decrypted))
	var noFolderIdx view.FolderIndex
	for i, f := range decrypted {
		if f.ID != nil {
			idToIndex[*f.ID] = view.FolderIndex(i)
		} else {
			noFolderIdx = view.FolderIndex(i)
		}
	}

	return decrypted, idToIndex, noFolderIdx
}

func idLess(a, b uuid.UUID) bool {
	return a.String() < b.String()
}

// buildIndices performs a single-pass classification into trash,
// favourites, per-type buckets, and per-folder contents.
func (v *Vault) buildIndices() error {
	v.cipherIDToIndex = make(map[uuid.UUID]view.CipherIndex, len(v.Ciphers))
	for i := range v.Ciphers {
		ci := view.CipherIndex(i)
		c := &v.Ciphers[i]
		v.cipherIDToIndex[c.ID] = ci

		if c.Deleted {
			v.Trash = append(v.Trash, ci)
		} else {
			v.All = append(v.All, ci)
			if c.Favourite {
				v.Favourites = append(v.Favourites, ci)
			}
			v.TypeBucket[c.Type] = append(v.TypeBucket[c.Type], ci)
		}

		var folderIdx view.FolderIndex
		if c.FolderID == nil {
			folderIdx = v.noFolderIndex
		} else {
			idx, ok := v.folderIDToIndex[*c.FolderID]
			if !ok {
				return fmt.Errorf("cipher %s references unknown folder %s", c.ID, *c.FolderID)
			}
			folderIdx = idx
		}
		v.Folders[folderIdx].Contents = append(v.Folders[folderIdx].Contents, ci)
	}
	return nil
}
