//go:build darwin

package emailhint

import (
	"fmt"

	keychain "github.com/keybase/go-keychain"
)

const (
	keychainService = "rofi-bw.email-hint"
	keychainAccount = "last-used-email"
	keychainLabel   = "rofi-bw last used email"
)

// Remember persists email as the last-used-email hint, device-local and
// never synced to iCloud.
func Remember(email string) error {
	item := keychain.NewGenericPassword(keychainService, keychainAccount, keychainLabel, []byte(email), "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := keychain.AddItem(item); err != nil {
		if err == keychain.ErrorDuplicateItem {
			query := keychain.NewGenericPassword(keychainService, keychainAccount, "", nil, "")
			update := keychain.NewItem()
			update.SetData([]byte(email))
			if err := keychain.UpdateItem(query, update); err != nil {
				return fmt.Errorf("update email hint: %w", err)
			}
			return nil
		}
		return fmt.Errorf("add email hint to keychain: %w", err)
	}
	return nil
}

// Lookup returns the remembered email, or "" if none is stored.
func Lookup() (string, error) {
	data, err := keychain.GetGenericPassword(keychainService, keychainAccount, "", "")
	if err != nil {
		return "", fmt.Errorf("read email hint: %w", err)
	}
	return string(data), nil
}

// Forget removes the stored hint; called on LogOut.
func Forget() error {
	query := keychain.NewGenericPassword(keychainService, keychainAccount, "", nil, "")
	if err := keychain.DeleteItem(query); err != nil && err != keychain.ErrorItemNotFound {
		return fmt.Errorf("remove email hint from keychain: %w", err)
	}
	return nil
}
