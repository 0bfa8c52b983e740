// Package session implements the authentication/session state machine:
// Closed -> Starting -> Unlocked, driven by the cached refresh token or a
// full login, with resync and lock/logout transitions. A small struct
// owning secret material in memory, wiped on Close, with one method per
// lifecycle operation.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/rofi-bw/rofi-bw-go/internal/cache"
	"github.com/rofi-bw/rofi-bw-go/internal/masterkey"
	"github.com/rofi-bw/rofi-bw-go/internal/vaultapi"
)

// State is the outer lifecycle state. Starting/Failed are transient and
// folded into Session.Start's return value rather than kept as long-lived
// states, since Go's synchronous call style doesn't need the intermediate
// states to be externally observable.
type State int

const (
	Closed State = iota
	Unlocked
)

// Session owns the master key, tokens, and last sync payload for one
// unlocked vault.
type Session struct {
	client   *vaultapi.Client
	cachePath string

	state     State
	email     string
	masterKey masterkey.MasterKey
	prelogin  vaultapi.PreloginResult
	token     vaultapi.Token
	accountJSON string
}

// New returns a Closed session bound to client and the given cache file
// path.
func New(client *vaultapi.Client, cachePath string) *Session {
	return &Session{client: client, cachePath: cachePath, state: Closed}
}

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// AccountJSON returns the last raw sync payload (valid only when Unlocked).
func (s *Session) AccountJSON() string { return s.accountJSON }

// MasterKey returns the session's master key (valid only when Unlocked).
func (s *Session) MasterKey() masterkey.MasterKey { return s.masterKey }

// Close wipes secret material and returns the session to Closed.
func (s *Session) Close() {
	s.masterKey.Drop()
	s.token = vaultapi.Token{}
	s.accountJSON = ""
	s.state = Closed
}

// Start drives Closed -> Unlocked: try the cache first (refresh), falling
// back to a full login on a cache miss or an expired session. password is
// zeroed by the caller once Start returns.
func (s *Session) Start(ctx context.Context, email, password string) error {
	s.email = email

	if rec := cache.Load(s.cachePath, email, password); rec != nil {
		s.prelogin = vaultapi.PreloginResult{Kdf: vaultapi.KdfPBKDF2, Iterations: rec.Iterations}
		s.masterKey = masterkey.Derive(password, email, rec.Iterations)

		tok, err := s.client.Refresh(ctx, rec.RefreshToken)
		switch {
		case err == nil:
			s.token = tok
			return s.sync(ctx)
		case errors.Is(err, vaultapi.ErrSessionExpired):
			log.Info("cached refresh token expired, falling back to full login")
		default:
			return fmt.Errorf("refresh cached session: %w", err)
		}
	}

	return s.fullLogin(ctx, email, password)
}

func (s *Session) fullLogin(ctx context.Context, email, password string) error {
	prelogin, err := s.client.Prelogin(ctx, email)
	if err != nil {
		return fmt.Errorf("prelogin: %w", err)
	}
	s.prelogin = prelogin

	mk := masterkey.Derive(password, email, prelogin.Iterations)
	hash := masterkey.PasswordHash(mk, password)

	tok, err := s.client.Login(ctx, email, hash)
	if err != nil {
		if errors.Is(err, vaultapi.ErrInvalidCredentials) {
			return vaultapi.ErrInvalidCredentials
		}
		return fmt.Errorf("login: %w", err)
	}

	s.masterKey = mk
	s.token = tok

	if err := s.sync(ctx); err != nil {
		return err
	}

	cache.Store(s.cachePath, email, password, cache.Record{
		RefreshToken: tok.Refresh,
		Iterations:   prelogin.Iterations,
	})

	return nil
}

// Sync pulls the latest account payload without touching tokens.
func (s *Session) Sync(ctx context.Context) error {
	return s.sync(ctx)
}

func (s *Session) sync(ctx context.Context) error {
	data, err := s.client.Sync(ctx, s.token.Access)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	s.accountJSON = data
	s.state = Unlocked
	return nil
}

// Resync forces a token refresh before syncing. On ErrSessionExpired the
// Session is discarded (Closed) and the error returned so the caller can
// re-drive the unlock loop; this is never shown to the user as an error.
func (s *Session) Resync(ctx context.Context) error {
	s.token.SetExpired()

	tok, err := s.client.Refresh(ctx, s.token.Refresh)
	if err != nil {
		if errors.Is(err, vaultapi.ErrSessionExpired) {
			s.Close()
			return vaultapi.ErrSessionExpired
		}
		return fmt.Errorf("refresh: %w", err)
	}
	s.token = tok

	return s.sync(ctx)
}

// IsCorrectMasterPassword verifies a candidate master password against the
// cached prelogin parameters, entirely locally (no network access), for
// in-menu reprompts.
func (s *Session) IsCorrectMasterPassword(password string) bool {
	candidate := masterkey.Derive(password, s.email, s.prelogin.Iterations)
	return candidate.Equal(s.masterKey)
}
