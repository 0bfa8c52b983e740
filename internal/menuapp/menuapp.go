// Package menuapp is the menu-side glue: it consumes the agent's
// Handshake, builds the decrypted Vault, holds navigation state via
// internal/view.History, and turns user actions into ipc.MenuRequest
// values. This is the logic a launcher plugin embeds; the plugin ABI
// itself is out of scope.
package menuapp

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
	"github.com/rofi-bw/rofi-bw-go/internal/masterkey"
	"github.com/rofi-bw/rofi-bw-go/internal/vault"
	"github.com/rofi-bw/rofi-bw-go/internal/view"
)

// App holds one menu invocation's worth of state: the decrypted vault, the
// current filter text, and the navigation history.
type App struct {
	Vault    *vault.Vault
	Warnings []error

	Filter  string
	History view.History[view.View]
}

// Build decrypts the handshake's account JSON under its master key and
// restores navigation state: the handshake carries history so it survives
// a menu relaunch.
func Build(hs ipc.Handshake) (*App, error) {
	var mk masterkey.MasterKey
	copy(mk[:], hs.MasterKey[:])

	v, warnings, err := vault.Build(string(hs.Data), mk)
	if err != nil {
		return nil, fmt.Errorf("build vault: %w", err)
	}

	hist := importHistory(hs.View, v)

	return &App{Vault: v, Warnings: warnings, Filter: hs.Filter, History: hist}, nil
}

// importHistory restores a view.History[view.View] from its portable
// form, resolving each UUID against the freshly built vault. A filter that
// no longer resolves (an entry deleted since the handshake was produced)
// falls back to List(All).
func importHistory(ph ipc.PortableHistory, v *vault.Vault) view.History[view.View] {
	fallback := view.NewList(view.List{Kind: view.ListAll})
	if len(ph.Stack) == 0 {
		return view.NewHistory(fallback)
	}

	stack := make([]view.View, len(ph.Stack))
	for i, pv := range ph.Stack {
		stack[i] = importView(pv, v)
	}

	hist, ok := view.FromEntries(stack, ph.Cursor)
	if !ok {
		return view.NewHistory(fallback)
	}
	return hist
}

func importView(pv ipc.PortableView, v *vault.Vault) view.View {
	switch pv.Kind {
	case ipc.PVList:
		return view.NewList(view.List{Kind: view.ListKind(pv.ListKind), Type: view.CipherType(pv.ListType)})
	case ipc.PVNoFolder:
		return view.NewFolder(v.NoFolderIndex())
	case ipc.PVFolder:
		id, err := uuid.FromBytes(pv.UUID[:])
		if err == nil {
			if idx, ok := v.FolderIndexByID(id); ok {
				return view.NewFolder(idx)
			}
		}
	case ipc.PVCipher:
		id, err := uuid.FromBytes(pv.UUID[:])
		if err == nil {
			if idx, ok := v.CipherIndexByID(id); ok {
				return view.NewCipher(idx)
			}
		}
	case ipc.PVFolderByName:
		for i, f := range v.Folders {
			if f.Name == pv.Name {
				return view.NewFolder(view.FolderIndex(i))
			}
		}
	case ipc.PVCipherByName:
		for i, c := range v.Ciphers {
			if c.Name == pv.Name {
				return view.NewCipher(view.CipherIndex(i))
			}
		}
	}
	return view.NewList(view.List{Kind: view.ListAll})
}

// ExportHistory flattens the current navigation history to its portable
// form for the next handshake or MenuState.
func (a *App) ExportHistory() ipc.PortableHistory {
	entries := a.History.Entries()
	stack := make([]ipc.PortableView, len(entries))
	for i, v := range entries {
		stack[i] = a.exportView(v)
	}
	return ipc.PortableHistory{Stack: stack, Cursor: a.History.Cursor()}
}

func (a *App) exportView(v view.View) ipc.PortableView {
	switch {
	case v.IsList():
		l := v.List()
		return ipc.PortableView{Kind: ipc.PVList, ListKind: int(l.Kind), ListType: int(l.Type)}
	case v.IsFolder():
		idx := v.Folder()
		if idx == a.Vault.NoFolderIndex() {
			return ipc.PortableView{Kind: ipc.PVNoFolder}
		}
		folder := a.Vault.Folders[idx]
		var raw [16]byte
		copy(raw[:], (*folder.ID)[:])
		return ipc.PortableView{Kind: ipc.PVFolder, UUID: raw}
	case v.IsCipher():
		c := a.Vault.Ciphers[v.Cipher()]
		var raw [16]byte
		copy(raw[:], c.ID[:])
		return ipc.PortableView{Kind: ipc.PVCipher, UUID: raw}
	}
	return ipc.PortableView{Kind: ipc.PVList}
}

// MenuState snapshots Filter/History for the next invocation's Copy, Sync,
// or Exit request.
func (a *App) MenuState() ipc.MenuState {
	return ipc.MenuState{Filter: a.Filter, History: a.ExportHistory()}
}

// Navigate pushes v onto the history.
func (a *App) Navigate(v view.View) {
	a.History.Push(v)
}

// Parent moves to the current view's parent.
func (a *App) Parent() {
	cur := a.History.Current()
	a.History.Push(cur.Parent(a.Vault.FolderIndexOf))
}

// Back/Forward delegate to the history.
func (a *App) Back()    { a.History.Back() }
func (a *App) Forward() { a.History.Forward() }

// CopyRequest builds the MenuRequest for copying a field's action, given
// the cipher and field being activated. reprompt is the cipher's Reprompt
// flag; the agent runs the local verification loop before honoring it.
func CopyRequest(cipherName string, f vault.Field, reprompt bool, state ipc.MenuState) (ipc.MenuRequest, error) {
	if f.Action == nil || f.Action.Kind != vault.ActionCopy {
		return ipc.MenuRequest{}, fmt.Errorf("field %q has no copy action", f.Display)
	}
	return ipc.MenuRequest{
		Kind:       ipc.MenuReqCopy,
		CipherName: cipherName,
		Field:      f.Display,
		Data:       f.Action.Data,
		Reprompt:   reprompt && f.Action.Hidden,
		MenuState:  state,
	}, nil
}
