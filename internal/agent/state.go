package agent

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"

	"github.com/rofi-bw/rofi-bw-go/internal/emailhint"
	"github.com/rofi-bw/rofi-bw-go/internal/history"
	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
)

// navStateFile is the small CBOR-encoded sidecar holding the last
// MenuState.History, so the *next* ShowMenu's handshake can resume where
// the previous menu invocation left off.
const navStateFile = "nav-state.cbor"

func navStatePath(historyDir string) string {
	return filepath.Join(historyDir, navStateFile)
}

func loadOrDefaultHistory(historyDir string) (ipc.PortableHistory, error) {
	data, err := os.ReadFile(navStatePath(historyDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ipc.PortableHistory{}, nil
		}
		return ipc.PortableHistory{}, err
	}
	var h ipc.PortableHistory
	if err := cbor.Unmarshal(data, &h); err != nil {
		return ipc.PortableHistory{}, err
	}
	return h, nil
}

func saveHistory(historyDir string, h ipc.PortableHistory) {
	data, err := cbor.Marshal(h)
	if err != nil {
		log.Warn("failed to encode navigation state", "err", err)
		return
	}
	if err := os.MkdirAll(historyDir, 0o700); err != nil {
		log.Warn("failed to create history directory", "err", err)
		return
	}
	if err := os.WriteFile(navStatePath(historyDir), data, 0o600); err != nil {
		log.Warn("failed to persist navigation state", "err", err)
	}
}

var copyLogs = map[string]*history.Log{}

func recordCopyEvent(historyDir, cipherName, field string) error {
	logPath := filepath.Join(historyDir, "history.db")
	l, ok := copyLogs[logPath]
	if !ok {
		opened, err := history.Open(logPath)
		if err != nil {
			return err
		}
		copyLogs[logPath] = opened
		l = opened
	}
	return l.Record(cipherName, field, time.Now())
}

func forgetStoredEmail() {
	if err := emailhint.Forget(); err != nil && !errors.Is(err, emailhint.ErrUnsupported) {
		log.Warn("failed to clear remembered email", "err", err)
	}
}
