// Package ipc defines the wire types and CBOR framing shared by two
// transports: the agent's singleton control socket (Request/Response) and
// the agent<->menu handshake pipe (Handshake/MenuRequest). CBOR
// (github.com/fxamacker/cbor/v2) is used as a compact, deterministic
// binary codec.
package ipc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// PortableFilterKind / PortableFilter let a navigation filter survive an
// IPC round-trip as a UUID or a name rather than an in-memory index.
type PortableFilterKind int

const (
	FilterByUUID PortableFilterKind = iota
	FilterByName
)

type PortableFilter struct {
	Kind PortableFilterKind
	UUID [16]byte
	Name string
}

// PortableViewKind / PortableView mirror view.View but with UUIDs instead
// of in-memory indices.
type PortableViewKind int

const (
	PVList PortableViewKind = iota
	PVNoFolder
	PVFolder
	PVCipher
	// PVFolderByName/PVCipherByName address a folder/cipher by display
	// name rather than UUID, for the CLI's --folder-name/--cipher-name
	// flags: the agent has no vault to resolve a name against, so
	// resolution is deferred to the menu process, which builds one from
	// the handshake.
	PVFolderByName
	PVCipherByName
)

type PortableView struct {
	Kind PortableViewKind
	// ListKind/ListType are only meaningful when Kind == PVList.
	ListKind int
	ListType int
	// UUID is only meaningful when Kind == PVFolder or PVCipher.
	UUID [16]byte
	// Name is only meaningful when Kind == PVFolderByName or PVCipherByName.
	Name string
}

// PortableHistory is History[PortableView] flattened for transport.
type PortableHistory struct {
	Stack  []PortableView
	Cursor int
}

// Request is sent on the agent's singleton control socket.
type Request struct {
	Kind RequestKind

	// ShowMenu fields:
	Display string
	Filter  string
	View    *PortableView
}

type RequestKind int

const (
	ReqShowMenu RequestKind = iota
	ReqQuit
)

// Response answers a Request.
type Response struct {
	Kind ResponseKind
}

type ResponseKind int

const (
	RespOk ResponseKind = iota
	RespBusy
)

// Handshake is the first frame written agent->menu.
type Handshake struct {
	MasterKey [32]byte
	Data      []byte // raw account sync JSON
	View      PortableHistory
	// Filter seeds the menu's search box, from the ShowMenu request that
	// spawned it; empty unless the request carried one.
	Filter string
}

// MenuState is the navigation/search state a menu persists across
// relaunches.
type MenuState struct {
	Filter  string
	History PortableHistory
}

// MenuRequest is sent menu->agent after the handshake.
type MenuRequest struct {
	Kind MenuRequestKind

	// Copy fields:
	CipherName string
	Field      string
	Data       string
	ImagePath  *string
	Reprompt   bool

	// carried by Copy, Sync, and Exit:
	MenuState MenuState
}

type MenuRequestKind int

const (
	MenuReqCopy MenuRequestKind = iota
	MenuReqSync
	MenuReqLock
	MenuReqLogOut
	MenuReqExit
)

// frame length-prefixes a CBOR-encoded message with a uint32 LE length, so
// stream readers never need to speculatively decode partial CBOR.
func writeFrame(w io.Writer, v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	if bw, ok := w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush frame: %w", err)
		}
	}
	return nil
}

func readFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("read frame length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	const maxFrame = 64 << 20
	if n > maxFrame {
		return fmt.Errorf("frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

// WriteRequest/ReadRequest, etc. are thin typed wrappers over the generic
// frame functions, giving each side of each transport a narrow, typo-proof
// API.

func WriteRequest(w *bufio.Writer, r Request) error   { return writeFrame(w, r) }
func ReadRequest(r io.Reader) (Request, error) {
	var out Request
	err := readFrame(r, &out)
	return out, err
}

func WriteResponse(w io.Writer, r Response) error { return writeFrame(w, r) }
func ReadResponse(r io.Reader) (Response, error) {
	var out Response
	err := readFrame(r, &out)
	return out, err
}

func WriteHandshake(w *bufio.Writer, h Handshake) error { return writeFrame(w, h) }
func ReadHandshake(r io.Reader) (Handshake, error) {
	var out Handshake
	err := readFrame(r, &out)
	return out, err
}

func WriteMenuRequest(w *bufio.Writer, m MenuRequest) error { return writeFrame(w, m) }
func ReadMenuRequest(r io.Reader) (MenuRequest, error) {
	var out MenuRequest
	err := readFrame(r, &out)
	return out, err
}
