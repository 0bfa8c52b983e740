package ipc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	view := PortableView{Kind: PVCipher, UUID: [16]byte{1, 2, 3}}
	req := Request{Kind: ReqShowMenu, Display: ":0", Filter: "git", View: &view}

	require.NoError(t, WriteRequest(bw, req))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	hs := Handshake{
		MasterKey: [32]byte{9, 9, 9},
		Data:      []byte(`{"profile":{}}`),
		View:      PortableHistory{Stack: []PortableView{{Kind: PVList}}, Cursor: 0},
		Filter:    "aws",
	}
	require.NoError(t, WriteHandshake(bw, hs))

	got, err := ReadHandshake(&buf)
	require.NoError(t, err)
	assert.Equal(t, hs, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	// 65MB, over the 64MB guard.
	const tooBig = 65 << 20
	lenBuf[0] = byte(tooBig)
	lenBuf[1] = byte(tooBig >> 8)
	lenBuf[2] = byte(tooBig >> 16)
	lenBuf[3] = byte(tooBig >> 24)
	buf.Write(lenBuf)

	_, err := ReadResponse(&buf)
	assert.Error(t, err)
}
