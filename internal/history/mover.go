// Package history applies the post-action disposition of a session
// folder: delete it, leave it, or move it into a destination directory.
// Failures are logged and non-fatal; retention policy beyond a single
// move lives outside the daemon.
package history

import (
	"fmt"
	"os"
	"path/filepath"

	"voxd/internal/logging"
	"voxd/internal/types"
)

// Mover implements types.HistoryMover on the local filesystem.
type Mover struct{}

// New returns a filesystem mover.
func New() *Mover {
	return &Mover{}
}

// Apply disposes of sessionPath per behavior.
func (m *Mover) Apply(sessionPath, behavior string) error {
	log := logging.Get(logging.CategoryAction)

	switch behavior {
	case "", types.PostMoveLeave:
		return nil

	case types.PostMoveDelete:
		if err := os.RemoveAll(sessionPath); err != nil {
			return fmt.Errorf("delete %s: %w", sessionPath, err)
		}
		log.Debug("deleted session folder %s", sessionPath)
		return nil

	default:
		if err := os.MkdirAll(behavior, 0755); err != nil {
			return fmt.Errorf("create destination %s: %w", behavior, err)
		}
		dest := filepath.Join(behavior, filepath.Base(sessionPath))
		if err := os.Rename(sessionPath, dest); err != nil {
			return fmt.Errorf("move %s -> %s: %w", sessionPath, dest, err)
		}
		log.Debug("moved session folder %s -> %s", sessionPath, dest)
		return nil
	}
}
