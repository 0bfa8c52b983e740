// Package emailhint optionally remembers the last-used account email in
// the macOS Keychain, under a fixed Keychain "account" key with a
// device-local, non-synchronizable access policy. The agent only calls
// Forget (on LogOut); its foreground prompt pre-fills the email from the
// <data>/data file, not from this package.
package emailhint

import "errors"

// ErrUnsupported signals that the email hint is not available on this
// platform (anything but darwin).
var ErrUnsupported = errors.New("email hint not supported on this platform")
