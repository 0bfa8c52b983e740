// Command menu is a directly-invokable stand-in for the launcher-embedded
// menu plugin: it speaks the handshake/request halves of the agent<->menu
// pipe over a plain terminal prompt instead of rofi's modi ABI, so
// internal/menuapp's logic can be exercised without a real launcher plugin.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
	"github.com/rofi-bw/rofi-bw-go/internal/menuapp"
	"github.com/rofi-bw/rofi-bw-go/internal/view"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rofi-bw-menu: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fdStr := os.Getenv("ROFI_BW_PIPE_FD")
	if fdStr == "" {
		return fmt.Errorf("ROFI_BW_PIPE_FD not set")
	}
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		return fmt.Errorf("invalid ROFI_BW_PIPE_FD: %w", err)
	}

	f := os.NewFile(uintptr(fd), "rofi-bw-pipe")
	conn, err := net.FileConn(f)
	if err != nil {
		return fmt.Errorf("wrap pipe fd: %w", err)
	}
	defer conn.Close()

	hs, err := ipc.ReadHandshake(conn)
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}

	app, err := menuapp.Build(hs)
	if err != nil {
		return fmt.Errorf("build menu: %w", err)
	}
	for _, w := range app.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}

	bw := bufio.NewWriter(conn)
	req, err := interact(app, bufio.NewReader(os.Stdin))
	if err != nil {
		return err
	}
	return ipc.WriteMenuRequest(bw, req)
}

// interact renders the current view's entries to stdout and reads one
// selection (a 1-based index, or "q" to exit) from in.
func interact(app *menuapp.App, in *bufio.Reader) (ipc.MenuRequest, error) {
	ciphers := currentEntries(app)

	fmt.Printf("-- %s --\n", app.Filter)
	for i, ci := range ciphers {
		fmt.Printf("%d) %s\n", i+1, app.Vault.Ciphers[ci].Name)
	}
	fmt.Print("select # to copy default field, or q to exit: ")

	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)

	state := app.MenuState()

	if line == "" || strings.EqualFold(line, "q") {
		return ipc.MenuRequest{Kind: ipc.MenuReqExit, MenuState: state}, nil
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(ciphers) {
		return ipc.MenuRequest{}, fmt.Errorf("invalid selection %q", line)
	}
	c := app.Vault.Ciphers[ciphers[n-1]]
	if c.DefaultCopy == nil {
		return ipc.MenuRequest{}, fmt.Errorf("cipher %q has no default copy field", c.Name)
	}
	f := c.Fields[*c.DefaultCopy]
	req, err := menuapp.CopyRequest(c.Name, f, c.Reprompt, state)
	if err != nil {
		return ipc.MenuRequest{}, err
	}
	return req, nil
}

// currentEntries resolves the current navigation view to the cipher
// indices it lists, for the list/folder/cipher view kinds.
func currentEntries(app *menuapp.App) []view.CipherIndex {
	cur := app.History.Current()
	switch {
	case cur.IsFolder():
		return app.Vault.Folders[cur.Folder()].Contents
	case cur.IsCipher():
		return []view.CipherIndex{cur.Cipher()}
	case cur.IsList():
		l := cur.List()
		switch l.Kind {
		case view.ListTrash:
			return app.Vault.Trash
		case view.ListFavourites:
			return app.Vault.Favourites
		case view.ListTypeBucket:
			return app.Vault.TypeBucket[l.Type]
		case view.ListFolders:
			return nil
		default:
			return app.Vault.All
		}
	}
	return nil
}
