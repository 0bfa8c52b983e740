// Command agent is the rofi-bw daemon entry point: a singleton process
// that owns the unlocked session and spawns the menu UI on request.
// Flag parsing and error handling use a flag.FlagSet per invocation, a
// userError for messages shown as-is, handleError translating everything
// else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/rofi-bw/rofi-bw-go/internal/agent"
	"github.com/rofi-bw/rofi-bw-go/internal/config"
	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
	"github.com/rofi-bw/rofi-bw-go/internal/vaultapi"
	"github.com/rofi-bw/rofi-bw-go/internal/xdgpaths"
)

type userError struct{ msg string }

func (e userError) Error() string { return e.msg }

func main() {
	if err := run(); err != nil {
		handleError(err)
	}
}

func handleError(err error) {
	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, uerr.Error())
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "rofi-bw: unexpected error: %v\n", err)
	os.Exit(2)
}

func run() error {
	fs := flag.NewFlagSet("rofi-bw", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		filter      string
		cipherUUID  string
		cipherName  string
		folderUUID  string
		folderName  string
		show        string
		reopenLast  bool
		configFile  string
	)
	fs.StringVar(&filter, "filter", "", "initial search filter")
	fs.StringVar(&cipherUUID, "cipher-uuid", "", "open a cipher by UUID")
	fs.StringVar(&cipherName, "cipher-name", "", "open a cipher by name")
	fs.StringVar(&folderUUID, "folder-uuid", "", "open a folder by UUID")
	fs.StringVar(&folderName, "folder-name", "", "open a folder by name")
	fs.StringVar(&show, "show", "", "open a top-level list: all|trash|favourites|logins|secure-notes|cards|identities|folders")
	fs.BoolVar(&reopenLast, "reopen-last", false, "reopen the last navigation state instead of the default view")
	fs.StringVar(&configFile, "config-file", "", "override the config.toml path")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return userError{msg: "invalid arguments"}
	}

	view, err := resolveView(cipherUUID, cipherName, folderUUID, folderName, show, reopenLast)
	if err != nil {
		return err
	}

	display := os.Getenv("DISPLAY")
	if display == "" {
		return userError{msg: "DISPLAY is not set"}
	}

	req := ipc.Request{Kind: ipc.ReqShowMenu, Display: display, Filter: filter, View: view}

	socketPath, err := xdgpaths.SocketPath()
	if err != nil {
		return fmt.Errorf("resolve socket path: %w", err)
	}

	if resp, err := agent.TryForward(socketPath, req); err == nil {
		if resp.Kind == ipc.RespBusy {
			return userError{msg: "rofi-bw is already showing the menu"}
		}
		return nil
	}

	return becomeDaemon(socketPath, configFile, req)
}

// resolveView turns the mutually exclusive view-selecting flags into a
// PortableView, or nil for the default view.
func resolveView(cipherUUID, cipherName, folderUUID, folderName, show string, reopenLast bool) (*ipc.PortableView, error) {
	set := 0
	for _, s := range []string{cipherUUID, cipherName, folderUUID, folderName, show} {
		if s != "" {
			set++
		}
	}
	if reopenLast {
		set++
	}
	if set > 1 {
		return nil, userError{msg: "view-selecting flags are mutually exclusive"}
	}

	switch {
	case cipherUUID != "":
		id, err := uuid.Parse(cipherUUID)
		if err != nil {
			return nil, userError{msg: "invalid --cipher-uuid"}
		}
		var raw [16]byte
		copy(raw[:], id[:])
		return &ipc.PortableView{Kind: ipc.PVCipher, UUID: raw}, nil
	case cipherName != "":
		return &ipc.PortableView{Kind: ipc.PVCipherByName, Name: cipherName}, nil
	case folderUUID != "":
		id, err := uuid.Parse(folderUUID)
		if err != nil {
			return nil, userError{msg: "invalid --folder-uuid"}
		}
		var raw [16]byte
		copy(raw[:], id[:])
		return &ipc.PortableView{Kind: ipc.PVFolder, UUID: raw}, nil
	case folderName != "":
		return &ipc.PortableView{Kind: ipc.PVFolderByName, Name: folderName}, nil
	case show != "":
		kind, typ, ok := parseShow(show)
		if !ok {
			return nil, userError{msg: "invalid --show value"}
		}
		return &ipc.PortableView{Kind: ipc.PVList, ListKind: kind, ListType: typ}, nil
	default:
		// reopenLast (or no flag at all): let the agent fall back to its
		// persisted navigation state.
		return nil, nil
	}
}

// parseShow maps --show's names to view.ListKind/view.CipherType, without
// importing internal/view here (cmd/agent only speaks the portable ipc
// representation; the menu process owns the in-memory view package).
func parseShow(name string) (listKind, listType int, ok bool) {
	const (
		listAll = iota
		listTrash
		listFavourites
		listTypeBucket
		listFolders
	)
	const (
		typeLogin = iota
		typeSecureNote
		typeCard
		typeIdentity
	)
	switch name {
	case "all":
		return listAll, 0, true
	case "trash":
		return listTrash, 0, true
	case "favourites", "favorites":
		return listFavourites, 0, true
	case "folders":
		return listFolders, 0, true
	case "logins":
		return listTypeBucket, typeLogin, true
	case "secure-notes":
		return listTypeBucket, typeSecureNote, true
	case "cards":
		return listTypeBucket, typeCard, true
	case "identities":
		return listTypeBucket, typeIdentity, true
	}
	return 0, 0, false
}

// becomeDaemon runs this process as the agent: load config/data files,
// build the vaultapi client, and drive the foreground loop.
// initial is the ShowMenu request that failed to forward (this process is
// now the one and only daemon), delivered as the first foreground request.
func becomeDaemon(socketPath, configFileOverride string, initial ipc.Request) error {
	dataDir, err := xdgpaths.DataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cacheDir, err := xdgpaths.CacheDir()
	if err != nil {
		return fmt.Errorf("resolve cache dir: %w", err)
	}
	configDir, err := xdgpaths.ConfigDir()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	configPath := configFileOverride
	if configPath == "" {
		configPath = configDir + "/config.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataFile, err := config.LoadDataFile(dataDir + "/data")
	if err != nil {
		return fmt.Errorf("load data file: %w", err)
	}

	baseURL := os.Getenv("ROFI_BW_SERVER_URL")
	if baseURL == "" {
		baseURL = "https://vault.bitwarden.com"
	}
	client := vaultapi.New(baseURL, cfg.ClientID, vaultapi.Device{
		Name:       cfg.DeviceName,
		Identifier: dataFile.DeviceID,
		Type:       vaultapi.DeviceTypeByName(cfg.DeviceType),
	})

	cachePath := cacheDir + "/cache"
	historyPath := dataDir

	prompter := &termPrompter{rememberedEmail: dataFile.Email}
	spawner := rofiSpawner{cfg: cfg}

	a := agent.New(cfg, client, cachePath, historyPath, clipboardWriter{}, agent.NoopNotifier{}, prompter, spawner.spawn)

	listener, err := agent.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("bind agent socket: %w", err)
	}
	defer listener.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.Serve(ctx, listener)

	if resp, err := agent.TryForward(socketPath, initial); err == nil {
		if resp.Kind == ipc.RespBusy {
			return userError{msg: "rofi-bw is already showing the menu"}
		}
	} else {
		return fmt.Errorf("deliver initial request to self: %w", err)
	}

	if err := a.RunForeground(ctx); err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	if prompter.rememberedEmail != "" {
		if err := config.SaveDataFile(dataDir+"/data", config.DataFile{
			Email:    prompter.rememberedEmail,
			DeviceID: dataFile.DeviceID,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "rofi-bw: failed to persist remembered email: %v\n", err)
		}
	}

	return nil
}

// termPrompter implements agent.PasswordPrompter via golang.org/x/term.
type termPrompter struct {
	rememberedEmail string
}

func (p *termPrompter) PromptEmail(previous string) (string, error) {
	if previous != "" {
		return previous, nil
	}
	if p.rememberedEmail != "" {
		return p.rememberedEmail, nil
	}
	fmt.Fprint(os.Stderr, "Email: ")
	var email string
	if _, err := fmt.Fscanln(os.Stdin, &email); err != nil {
		return "", fmt.Errorf("read email: %w", err)
	}
	p.rememberedEmail = email
	return email, nil
}

func (p *termPrompter) PromptMasterPassword(title string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", title)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// ForgetEmail clears the remembered email so LogOut forces a fresh prompt
// instead of silently reusing the previous account on the next unlock.
func (p *termPrompter) ForgetEmail() {
	p.rememberedEmail = ""
}

// clipboardWriter implements agent.Clipboard via github.com/atotto/clipboard.
type clipboardWriter struct{}

func (clipboardWriter) WriteAll(text string) error { return clipboard.WriteAll(text) }

// rofiSpawner implements agent.MenuSpawner: it execs the configured
// launcher binary with the socketpair fd inherited at fd 3 and exposed via
// ROFI_BW_PIPE_FD.
type rofiSpawner struct {
	cfg config.Config
}

func (s rofiSpawner) spawn(ctx context.Context, pipeFD *os.File) (*exec.Cmd, error) {
	binary := s.cfg.RofiOptions.Binary
	if binary == "" {
		binary = "rofi"
	}

	args := append([]string(nil), s.cfg.RofiOptions.Flags...)
	cmd := exec.CommandContext(ctx, binary, args...)
	// stdin/stdout/stderr occupy fds 0-2; the single ExtraFiles entry
	// lands at fd 3 in the child.
	cmd.ExtraFiles = []*os.File{pipeFD}
	cmd.Env = append(os.Environ(), "ROFI_BW_PIPE_FD=3")
	if libDir := os.Getenv("ROFI_BW_LIB_DIR"); libDir != "" {
		cmd.Env = append(cmd.Env, "ROFI_BW_LIB_DIR="+libDir)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	return cmd, nil
}
