// Package vaultapi talks to the remote account server: prelogin, login,
// token refresh, and sync, using a per-Client *http.Client with a
// 30-second timeout and context-scoped requests.
package vaultapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a thin REST client for the account API.
type Client struct {
	BaseURL  string
	ClientID string
	Device   Device

	httpClient *http.Client
}

// Device identifies this agent installation to the server.
type Device struct {
	Name       string
	Identifier uuid.UUID
	Type       int
}

// deviceTypes mirrors bitwarden/server's Core/Enums/DeviceType.cs, the
// numeric device type the server expects at login.
var deviceTypes = map[string]int{
	"android":           0,
	"ios":               1,
	"chrome-extension":  2,
	"firefox-extension": 3,
	"opera-extension":   4,
	"edge-extension":    5,
	"windows":           6,
	"macos":             7,
	"linux":             8,
	"chrome":            9,
	"firefox":           10,
	"opera":             11,
	"edge":              12,
}

// DeviceTypeByName resolves config.toml's device_type string to the
// numeric type the server expects, defaulting to "linux" for an unknown
// name.
func DeviceTypeByName(name string) int {
	if t, ok := deviceTypes[strings.ToLower(name)]; ok {
		return t
	}
	return deviceTypes["linux"]
}

// New returns a Client with a conservative request timeout, matching the
// teacher's hibpHTTPClient pattern.
func New(baseURL, clientID string, device Device) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		ClientID: clientID,
		Device:   device,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Kdf identifies the KDF algorithm a prelogin response reports. Only
// KdfPBKDF2 is understood; anything else is reported verbatim in the error.
type Kdf int

const KdfPBKDF2 Kdf = 0

// PreloginResult carries the KDF parameters the server advertises for an
// email address.
type PreloginResult struct {
	Kdf        Kdf
	Iterations uint32
}

type preloginResponse struct {
	Kdf           int    `json:"Kdf"`
	KdfIterations uint32 `json:"KdfIterations"`
}

// Prelogin fetches KDF parameters for email.
func (c *Client) Prelogin(ctx context.Context, email string) (PreloginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return PreloginResult{}, fmt.Errorf("encode prelogin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/accounts/prelogin", strings.NewReader(string(body)))
	if err != nil {
		return PreloginResult{}, fmt.Errorf("build prelogin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PreloginResult{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PreloginResult{}, statusError(resp)
	}

	var parsed preloginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return PreloginResult{}, &BodyError{Err: err}
	}

	if parsed.Kdf != int(KdfPBKDF2) {
		return PreloginResult{}, fmt.Errorf("unrecognized KDF algorithm %d", parsed.Kdf)
	}
	if parsed.KdfIterations == 0 {
		return PreloginResult{}, errors.New("prelogin reported zero iterations")
	}

	return PreloginResult{Kdf: KdfPBKDF2, Iterations: parsed.KdfIterations}, nil
}

// Token is an access/refresh token pair with its computed expiry.
type Token struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// Expired reports whether the access token should be treated as unusable:
// empty, or past its expiry.
func (t Token) Expired(now time.Time) bool {
	return t.Access == "" || !now.Before(t.ExpiresAt)
}

// SetExpired clears the access token, forcing a refresh on next use.
func (t *Token) SetExpired() {
	t.Access = ""
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorModel       *struct {
		Message string `json:"Message"`
	} `json:"ErrorModel"`
}

// Login performs the OAuth password grant, exchanging the master password
// hash for an access/refresh token pair.
func (c *Client) Login(ctx context.Context, email, masterPasswordHash string) (Token, error) {
	form := url.Values{
		"grant_type":       {"password"},
		"username":         {email},
		"password":         {masterPasswordHash},
		"scope":            {"api offline_access"},
		"client_id":        {c.ClientID},
		"deviceName":       {c.Device.Name},
		"deviceIdentifier": {strings.ToLower(c.Device.Identifier.String())},
		"deviceType":       {fmt.Sprintf("%d", c.Device.Type)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Auth-Email", base64.URLEncoding.EncodeToString([]byte(email)))
	req.Header.Set("Device-Type", fmt.Sprintf("%d", c.Device.Type))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &BodyError{Err: err}
	}

	var parsed tokenResponse
	_ = json.Unmarshal(bodyBytes, &parsed)

	if resp.StatusCode == http.StatusBadRequest {
		if parsed.ErrorDescription == "invalid_username_or_password" {
			return Token{}, ErrInvalidCredentials
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, &StatusError{Code: resp.StatusCode, Message: errorMessage(parsed)}
	}

	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return Token{}, &BodyError{Err: err}
	}

	return Token{
		Access:    parsed.AccessToken,
		Refresh:   parsed.RefreshToken,
		ExpiresAt: time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}

// Refresh exchanges a refresh token for a new access token. An HTTP 400
// response is reported as ErrSessionExpired.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.ClientID},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return Token{}, ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, statusError(resp)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Token{}, &BodyError{Err: err}
	}

	newToken := Token{
		Access:    parsed.AccessToken,
		Refresh:   parsed.RefreshToken,
		ExpiresAt: time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}
	if newToken.Refresh == "" {
		newToken.Refresh = refreshToken
	}
	return newToken, nil
}

// Sync pulls the raw account JSON (profile, folders, ciphers), returned
// unparsed; decoding happens menu-side.
func (c *Client) Sync(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/sync?excludeDomains=true", nil)
	if err != nil {
		return "", fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BodyError{Err: err}
	}
	return string(data), nil
}

func errorMessage(t tokenResponse) string {
	if t.ErrorModel != nil && t.ErrorModel.Message != "" {
		return t.ErrorModel.Message
	}
	if t.ErrorDescription != "" {
		return t.ErrorDescription
	}
	return t.Error
}

func statusError(resp *http.Response) error {
	msg := resp.Status
	var parsed struct {
		Message    string `json:"Message"`
		ErrorModel *struct {
			Message string `json:"Message"`
		} `json:"ErrorModel"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
		if parsed.ErrorModel != nil && parsed.ErrorModel.Message != "" {
			msg = parsed.ErrorModel.Message
		} else if parsed.Message != "" {
			msg = parsed.Message
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
