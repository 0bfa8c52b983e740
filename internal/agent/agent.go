package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rofi-bw/rofi-bw-go/internal/config"
	"github.com/rofi-bw/rofi-bw-go/internal/hygiene"
	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
	"github.com/rofi-bw/rofi-bw-go/internal/session"
	"github.com/rofi-bw/rofi-bw-go/internal/vaultapi"
)

// Clipboard is the external collaborator for clipboard write; cmd/agent
// supplies a concrete implementation.
type Clipboard interface {
	WriteAll(text string) error
}

// Notifier shows a desktop notification for a successful copy, when
// config.toml's copy_notification is set. Wiring a real desktop
// notification backend is left to a caller-supplied implementation; the
// only one shipped here is a no-op.
type Notifier interface {
	Notify(title, body string) error
}

// NoopNotifier never shows anything.
type NoopNotifier struct{}

func (NoopNotifier) Notify(string, string) error { return nil }

// PasswordPrompter asks the user for their master password (and, after the
// server rejects one, re-asks with a failure title). Implemented by
// cmd/agent via golang.org/x/term.
type PasswordPrompter interface {
	PromptEmail(previous string) (string, error)
	PromptMasterPassword(title string) (string, error)
	// ForgetEmail clears any email a prompter implementation remembers
	// across PromptEmail calls (e.g. a remembered-from-disk hint), so a
	// LogOut genuinely requires re-entering the email on the next unlock.
	ForgetEmail()
}

// MenuSpawner launches the launcher-embedded menu plugin, inheriting pipeFD
// as its ROFI_BW_PIPE_FD. Constructing the actual launcher invocation
// (binary path, plugin search path, custom keybind flags) is cmd/agent's
// job, supplied from config.RofiOptions.
type MenuSpawner func(ctx context.Context, pipeFD *os.File) (*exec.Cmd, error)

// Agent owns a channel-based rendezvous in place of a Mutex+Condvar:
// pushToForeground carries at most one outstanding Request, and the
// atomic waiting flag implements the Busy/Ok decision without a separate
// mutex.
type Agent struct {
	cfg         config.Config
	client      *vaultapi.Client
	cachePath   string
	historyPath string

	clipboard Clipboard
	notifier  Notifier
	prompter  PasswordPrompter
	spawnMenu MenuSpawner

	waiting          atomic.Bool
	pushToForeground chan ipc.Request
}

// New constructs an Agent ready to run. All collaborator parameters are
// external dependencies supplied by the caller; a nil notifier is replaced
// with a safe no-op (a nil spawner is a caller bug, not recoverable).
func New(cfg config.Config, client *vaultapi.Client, cachePath, historyPath string, clipboard Clipboard, notifier Notifier, prompter PasswordPrompter, spawnMenu MenuSpawner) *Agent {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	a := &Agent{
		cfg:              cfg,
		client:           client,
		cachePath:        cachePath,
		historyPath:      historyPath,
		clipboard:        clipboard,
		notifier:         notifier,
		prompter:         prompter,
		spawnMenu:        spawnMenu,
		pushToForeground: make(chan ipc.Request, 1),
	}
	a.waiting.Store(true)
	return a
}

// dispatch implements the Busy/Ok decision: a request is accepted only
// when the foreground is in Waiting (not already ShowingMenu or
// mid-transfer), guaranteeing at most one outstanding request at a time.
func (a *Agent) dispatch(req ipc.Request) ipc.Response {
	if !a.waiting.CompareAndSwap(true, false) {
		return ipc.Response{Kind: ipc.RespBusy}
	}
	a.pushToForeground <- req
	return ipc.Response{Kind: ipc.RespOk}
}

// RunForeground drives the outer unlock loop and the per-ShowMenu inner
// loop. It returns when ctx is cancelled, a Quit request arrives, the
// auto_lock timeout expires while waiting (after(0): right after serving
// one request), or unlock fails with an error other than invalid
// credentials.
func (a *Agent) RunForeground(ctx context.Context) error {
	email := ""

	for {
		sess := session.New(a.client, a.cachePath)

		if err := a.unlock(ctx, sess, &email); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("unlock: %w", err)
		}

		shouldExit, err := a.serveUntilLockOrExit(ctx, sess, &email)
		sess.Close()
		if err != nil {
			return err
		}
		if shouldExit {
			return nil
		}
		// otherwise: Lock/SessionExpired broke us out, loop to re-unlock.
	}
}

func (a *Agent) unlock(ctx context.Context, sess *session.Session, email *string) error {
	title := "Master password"
	for {
		if *email == "" {
			e, err := a.prompter.PromptEmail("")
			if err != nil {
				return err
			}
			*email = e
		}

		password, err := a.prompter.PromptMasterPassword(title)
		if err != nil {
			return err
		}

		err = sess.Start(ctx, *email, password)
		runHygieneCheck(ctx, a.cfg, password)
		zeroString(&password)
		if err == nil {
			return nil
		}
		if errors.Is(err, vaultapi.ErrInvalidCredentials) {
			log.Warn("master password incorrect, retrying")
			title = "Incorrect master password, try again"
			continue
		}
		return err
	}
}

// runHygieneCheck is the opt-in master-password strength/breach advisory,
// logged rather than blocking unlock.
func runHygieneCheck(ctx context.Context, cfg config.Config, password string) {
	if !cfg.CheckPasswordBreach {
		return
	}
	report := hygiene.Check(ctx, password, hygiene.Options{CheckBreach: true})
	if report.Weak {
		log.Warn("master password estimated weak", "score", report.Score)
	}
	if report.BreachFound {
		log.Warn("master password appears in a known breach list", "count", report.BreachCount)
	}
}

// serveUntilLockOrExit runs the inner loop: spawn a menu, read its
// MenuRequest, dispatch the effect, and either loop back to Waiting or
// break for the caller to re-unlock (Lock/LogOut/SessionExpired) or exit
// the daemon entirely (Quit, ctx cancelled, or the auto-lock timeout;
// After(0) exits right after one served request).
func (a *Agent) serveUntilLockOrExit(ctx context.Context, sess *session.Session, email *string) (exit bool, err error) {
	for {
		al := a.cfg.AutoLock()
		var req ipc.Request
		select {
		case req = <-a.pushToForeground:
		case <-waitTimeout(al):
			return true, nil
		case <-ctx.Done():
			return true, nil
		}

		if req.Kind == ipc.ReqQuit {
			return true, nil
		}

		menuReq, runErr := a.runOneMenu(ctx, sess, req)
		if runErr != nil {
			log.Warn("menu invocation failed", "err", runErr)
			a.waiting.Store(true)
			continue
		}

		brk, derr := a.applyMenuRequest(ctx, sess, menuReq, email)
		if derr != nil {
			log.Warn("failed to apply menu request", "err", derr)
		}
		if brk {
			a.waiting.Store(true)
			return false, nil
		}

		a.waiting.Store(true)

		// After(0): don't wait for another ShowMenu, exit immediately
		// having served exactly this one request.
		if !al.Never && al.Duration == 0 {
			return true, nil
		}
	}
}

func waitTimeout(al config.AutoLock) <-chan time.Time {
	if al.Never {
		return nil
	}
	return time.After(al.Duration)
}

// runOneMenu builds the Handshake, spawns the menu child over a
// socketpair-derived fd, flushes the handshake fully before the menu's
// first request, and reads exactly one MenuRequest back.
func (a *Agent) runOneMenu(ctx context.Context, sess *session.Session, req ipc.Request) (ipc.MenuRequest, error) {
	agentFD, menuFD, err := socketpair()
	if err != nil {
		return ipc.MenuRequest{}, fmt.Errorf("create socketpair: %w", err)
	}
	defer agentFD.Close()

	cmd, err := a.spawnMenu(ctx, menuFD)
	if err != nil {
		menuFD.Close()
		return ipc.MenuRequest{}, fmt.Errorf("spawn menu: %w", err)
	}
	// menuFD was inherited into the child; the parent's copy must be
	// closed so EOF propagates correctly if the child never uses it.
	menuFD.Close()

	var mk [32]byte
	mkBytes := sess.MasterKey()
	copy(mk[:], mkBytes[:])

	hist, err := loadOrDefaultHistory(a.historyPath)
	if err != nil {
		log.Warn("failed to load saved navigation state", "err", err)
	}
	// An explicit view-selecting CLI flag overrides whatever navigation
	// state was persisted from the previous invocation.
	if req.View != nil {
		hist = ipc.PortableHistory{Stack: []ipc.PortableView{*req.View}, Cursor: 0}
	}

	hs := ipc.Handshake{
		MasterKey: mk,
		Data:      []byte(sess.AccountJSON()),
		View:      hist,
		Filter:    req.Filter,
	}

	conn, err := net.FileConn(agentFD)
	if err != nil {
		return ipc.MenuRequest{}, fmt.Errorf("wrap socketpair fd: %w", err)
	}
	defer conn.Close()

	bw := newBufWriter(conn)
	if err := ipc.WriteHandshake(bw, hs); err != nil {
		return ipc.MenuRequest{}, fmt.Errorf("write handshake: %w", err)
	}

	menuReq, err := ipc.ReadMenuRequest(conn)
	if err != nil {
		_ = cmd.Wait()
		return ipc.MenuRequest{}, fmt.Errorf("read menu request: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		log.Warn("menu process exited non-zero", "err", err)
	}

	return menuReq, nil
}

// applyMenuRequest dispatches one MenuRequest; brk signals that the outer
// caller should drop the session and re-drive unlock (Lock, LogOut, or a
// SessionExpired Sync).
func (a *Agent) applyMenuRequest(ctx context.Context, sess *session.Session, req ipc.MenuRequest, email *string) (brk bool, err error) {
	saveHistory(a.historyPath, req.MenuState.History)

	switch req.Kind {
	case ipc.MenuReqCopy:
		if req.Reprompt {
			if !a.repromptLoop(sess) {
				return false, nil // cancelled: clipboard unchanged
			}
		}
		if err := a.clipboard.WriteAll(req.Data); err != nil {
			return false, fmt.Errorf("write clipboard: %w", err)
		}
		if err := recordCopyEvent(a.historyPath, req.CipherName, req.Field); err != nil {
			log.Warn("failed to record copy history", "err", err)
		}
		if a.cfg.CopyNotification {
			if err := a.notifier.Notify("rofi-bw", fmt.Sprintf("Copied %s for %s", req.Field, req.CipherName)); err != nil {
				log.Warn("notification failed", "err", err)
			}
		}
		return false, nil

	case ipc.MenuReqSync:
		if err := sess.Resync(ctx); err != nil {
			if errors.Is(err, vaultapi.ErrSessionExpired) {
				return true, nil
			}
			return false, err
		}
		return false, nil

	case ipc.MenuReqLock:
		return true, nil

	case ipc.MenuReqLogOut:
		forgetStoredEmail()
		if a.prompter != nil {
			a.prompter.ForgetEmail()
		}
		*email = ""
		return true, nil

	case ipc.MenuReqExit:
		return false, nil
	}
	return false, fmt.Errorf("unknown menu request kind %d", req.Kind)
}

// repromptLoop re-asks for the master password up to three times,
// verifying locally via Session.IsCorrectMasterPassword.
func (a *Agent) repromptLoop(sess *session.Session) bool {
	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		pw, err := a.prompter.PromptMasterPassword("Confirm master password")
		if err != nil {
			return false
		}
		ok := sess.IsCorrectMasterPassword(pw)
		zeroString(&pw)
		if ok {
			return true
		}
	}
	return false
}

func zeroString(s *string) {
	b := []byte(*s)
	for i := range b {
		b[i] = 0
	}
	*s = ""
}

func newBufWriter(conn net.Conn) *bufio.Writer {
	return bufio.NewWriter(conn)
}

// socketpair creates a connected pair of unix-domain sockets: one retained
// by the agent, one handed to the menu child via exec.Cmd.ExtraFiles. No
// library wraps socketpair(2), so this stays on syscall.Socketpair.
func socketpair() (agentEnd, menuEnd *os.File, err error) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}
	agentEnd = os.NewFile(uintptr(fds[0]), "agent-menu-agent-end")
	menuEnd = os.NewFile(uintptr(fds[1]), "agent-menu-menu-end")
	return agentEnd, menuEnd, nil
}
