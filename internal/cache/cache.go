// Package cache implements the encrypted on-disk refresh-token cache: an
// Argon2id key derived from (password, email) wraps {refresh_token, KDF
// params} with XChaCha20-Poly1305, written atomically via a temp-file
// rename.
package cache

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/charmbracelet/log"

	"github.com/rofi-bw/rofi-bw-go/krypto"
)

const (
	version = 0x00

	// KdfPBKDF2 is the only recognized KDF algorithm tag in the cached
	// plaintext.
	KdfPBKDF2 = 0
)

// Record is the plaintext payload wrapped by the cache file.
type Record struct {
	RefreshToken string
	Iterations   uint32
}

// deriveKey recomputes the 32-byte wrapping key from (password, salt=email)
// via Argon2id (krypto.DeriveKeyArgon2id, shared with the rest of the
// codebase). The key is never persisted.
func deriveKey(password, email string) []byte {
	key, err := krypto.DeriveKeyArgon2id([]byte(password), []byte(email), krypto.DefaultArgon2Params())
	if err != nil {
		// DeriveKeyArgon2id fails only for an empty password or email;
		// neither Session.Start nor fullLogin rejects those beforehand.
		// The all-zero key returned here fails the AEAD open of any file
		// sealed under a derived key, and fullLogin reaches Store only
		// after the server has accepted the password.
		return make([]byte, 32)
	}
	return key
}

// Load reads and decrypts the cache file at path. Any failure short of a
// successful decode — missing file, bad version, truncated data, failed
// AEAD, malformed plaintext — is logged and reported as nil: the caller
// proceeds via full login rather than hard-failing.
func Load(path, email, password string) *Record {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("refresh-token cache unreadable", "err", err)
		}
		return nil
	}

	rec, err := decode(data, email, password)
	if err != nil {
		log.Warn("refresh-token cache invalid, ignoring", "err", err)
		return nil
	}
	return rec
}

func decode(data []byte, email, password string) (*Record, error) {
	if len(data) < 1+chacha20poly1305.NonceSizeX {
		return nil, errors.New("cache file truncated")
	}
	if data[0] != version {
		return nil, fmt.Errorf("unsupported cache version %d", data[0])
	}

	nonce := data[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := data[1+chacha20poly1305.NonceSizeX:]

	key := deriveKey(password, email)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("construct aead: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt cache: %w", err)
	}

	return decodeRecord(plaintext)
}

func decodeRecord(plaintext []byte) (*Record, error) {
	if len(plaintext) < 1 {
		return nil, errors.New("empty plaintext")
	}
	tokenLen := int(plaintext[0])
	rest := plaintext[1:]
	if len(rest) < tokenLen+1+4 {
		return nil, errors.New("plaintext truncated")
	}
	token := string(rest[:tokenLen])
	rest = rest[tokenLen:]

	algo := rest[0]
	if algo != KdfPBKDF2 {
		return nil, fmt.Errorf("unsupported kdf algorithm tag %d", algo)
	}
	iterations := binary.LittleEndian.Uint32(rest[1:5])
	if iterations == 0 {
		return nil, errors.New("zero iterations")
	}

	return &Record{RefreshToken: token, Iterations: iterations}, nil
}

func encodeRecord(rec Record) ([]byte, error) {
	if len(rec.RefreshToken) > 255 {
		return nil, errors.New("refresh token too long to cache")
	}
	buf := make([]byte, 0, 1+len(rec.RefreshToken)+1+4)
	buf = append(buf, byte(len(rec.RefreshToken)))
	buf = append(buf, rec.RefreshToken...)
	buf = append(buf, KdfPBKDF2)
	var iterBytes [4]byte
	binary.LittleEndian.PutUint32(iterBytes[:], rec.Iterations)
	buf = append(buf, iterBytes[:]...)
	return buf, nil
}

// Store best-effort persists rec to path, encrypted under a key derived
// from (password, email). Failures are logged, never propagated.
func Store(path, email, password string, rec Record) {
	if err := store(path, email, password, rec); err != nil {
		log.Warn("failed to write refresh-token cache", "err", err)
	}
}

func store(path, email, password string, rec Record) error {
	plaintext, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	key := deriveKey(password, email)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("construct aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	out = append(out, version)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	return overwriteAtomic(path, out)
}

// overwriteAtomic writes data to path via create-temp-then-rename, so a
// crash mid-write never leaves a corrupt cache file behind.
func overwriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
