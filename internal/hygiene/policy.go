package hygiene

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/nbutton23/zxcvbn-go"
)

const (
	breachRangeURL  = "https://api.pwnedpasswords.com/range/"
	breachUserAgent = "rofi-bw-go/0.1"
)

var breachHTTPClient = &http.Client{
	Timeout: 4 * time.Second,
}

// Options configures how thorough a Check is. Unlike a vault-setup gate,
// nothing here rejects a password — Check always succeeds and returns a
// Report for the caller to display or ignore.
type Options struct {
	CheckBreach    bool
	MinZXCVBNScore int
}

// DefaultOptions matches config.toml's defaults: hygiene checks are
// opt-in, off by default.
func DefaultOptions() Options {
	return Options{
		CheckBreach:    false,
		MinZXCVBNScore: 3,
	}
}

// Report summarizes a master password's estimated strength and, if
// requested, its breach-corpus status.
type Report struct {
	Score        int
	Weak         bool
	BreachFound  bool
	BreachCount  int
	BreachLookupFailed bool
}

// Composition buckets a quick, non-scored observation about character
// variety. It is not part of Report, and Check does not compute it.
type Composition struct {
	HasUpper, HasDigit, HasSpecial bool
}

// Check estimates pw's strength with zxcvbn and, if opts.CheckBreach is
// set, queries HIBP. It never blocks on or fails the unlock flow: a failed
// HIBP lookup is reported via BreachLookupFailed rather than returned as an
// error.
func Check(ctx context.Context, pw string, opts Options) Report {
	if opts.MinZXCVBNScore == 0 {
		opts.MinZXCVBNScore = DefaultOptions().MinZXCVBNScore
	}

	strength := zxcvbn.PasswordStrength(pw, nil)
	report := Report{
		Score: strength.Score,
		Weak:  strength.Score < opts.MinZXCVBNScore,
	}

	if opts.CheckBreach {
		found, count, err := lookupBreachCount(ctx, pw)
		if err != nil {
			log.Warn("hibp lookup failed", "err", err)
			report.BreachLookupFailed = true
		} else {
			report.BreachFound = found
			report.BreachCount = count
		}
	}

	return report
}

// lookupBreachCount asks the HIBP range API how many times pw's hash has
// leaked, using k-anonymity: only a 5-hex prefix of SHA-1(pw) ever leaves
// the machine, and the full suffix comparison happens locally against the
// streamed response.
func lookupBreachCount(ctx context.Context, pw string) (found bool, count int, err error) {
	sum := sha1.Sum([]byte(pw))
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hashHex[:5], hashHex[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, breachRangeURL+prefix, nil)
	if err != nil {
		return false, 0, fmt.Errorf("build breach range request: %w", err)
	}
	req.Header.Set("User-Agent", breachUserAgent)

	resp, err := breachHTTPClient.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("query breach range: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, 0, fmt.Errorf("query breach range: unexpected status %s", resp.Status)
	}

	return scanBreachRange(resp.Body, suffix)
}

// scanBreachRange walks the "SUFFIX:COUNT" lines HIBP returns for a prefix,
// looking for one whose suffix matches ours case-insensitively.
func scanBreachRange(body io.Reader, suffix string) (found bool, count int, err error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sep := strings.IndexByte(line, ':')
		if sep == -1 {
			continue
		}

		lineSuffix := line[:sep]
		if !strings.EqualFold(lineSuffix, suffix) {
			continue
		}

		n, convErr := strconv.Atoi(strings.TrimSpace(line[sep+1:]))
		if convErr != nil {
			return false, 0, fmt.Errorf("parse breach count: %w", convErr)
		}
		return true, n, nil
	}
	if err := scanner.Err(); err != nil {
		return false, 0, fmt.Errorf("read breach range response: %w", err)
	}
	return false, 0, nil
}

// InspectComposition reports which character classes pw contains, for
// advisory display only.
func InspectComposition(pw string) Composition {
	const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"
	var c Composition
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			c.HasUpper = true
		case unicode.IsDigit(r):
			c.HasDigit = true
		case strings.ContainsRune(specialChars, r):
			c.HasSpecial = true
		}
	}
	return c
}
