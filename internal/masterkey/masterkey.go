// Package masterkey implements the key derivation chain: PBKDF2-SHA256
// master key derivation, an HKDF-SHA256 stretch into an encrypt/MAC key
// pair, and the master-password hash sent to the account API during
// login.
package masterkey

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/rofi-bw/rofi-bw-go/internal/cipherstring"
	"github.com/rofi-bw/rofi-bw-go/krypto"
)

// Size is the byte length of a MasterKey.
const Size = 32

// MasterKey is the 32-byte secret derived from the user's master password.
// It is zeroed on Drop and compared in constant time.
type MasterKey [Size]byte

// Derive runs PBKDF2-HMAC-SHA256 over (password, lowercase(email)) for
// iterations rounds, producing a MasterKey.
func Derive(password, email string, iterations uint32) MasterKey {
	lower := strings.ToLower(email)
	derived := pbkdf2.Key([]byte(password), []byte(lower), int(iterations), Size, sha256.New)
	var mk MasterKey
	copy(mk[:], derived)
	return mk
}

// Equal compares two MasterKeys in constant time.
func (mk MasterKey) Equal(other MasterKey) bool {
	return subtle.ConstantTimeCompare(mk[:], other[:]) == 1
}

// Drop zeroes the key's backing bytes. Calling it on a copy leaves the
// original untouched; Session.Close calls it on Session's own field.
func (mk *MasterKey) Drop() {
	for i := range mk {
		mk[i] = 0
	}
}

// StretchMaster expands a MasterKey into a SymmetricKey via HKDF-SHA256
// (skip-extract, PRK = mk), with info labels "enc" then "mac". The expand
// step is krypto.HKDFExpandSHA256, shared with the rest of the codebase
// rather than reimplemented here.
func StretchMaster(mk MasterKey) cipherstring.SymmetricKey {
	var out cipherstring.SymmetricKey
	enc, _ := krypto.HKDFExpandSHA256(mk[:], []byte("enc"), 32)
	mac, _ := krypto.HKDFExpandSHA256(mk[:], []byte("mac"), 32)
	copy(out[:32], enc)
	copy(out[32:], mac)
	return out
}

// PasswordHash computes the value sent to the server as the OAuth "password"
// grant's password field: PBKDF2-HMAC-SHA256(mk, salt=password, iterations=1,
// 32 bytes), base64-standard-encoded.
func PasswordHash(mk MasterKey, password string) string {
	derived := pbkdf2.Key(mk[:], []byte(password), 1, 32, sha256.New)
	return base64.StdEncoding.EncodeToString(derived)
}
