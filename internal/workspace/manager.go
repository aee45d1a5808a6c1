package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"commonbook-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Subdirectories of a session tree.
const (
	SubdirUploads   = "uploads"
	SubdirProcessed = "processed"
	SubdirArtifacts = "artifacts"
)

// Manager owns the on-disk directory tree for every session:
// {base}/{session_id}/{uploads,processed,artifacts}. All state a session
// writes to disk lives under its own root so destruction is one
// recursive removal.
type Manager struct {
	baseDir string
	log     logger.ILogger
}

func NewManager(baseDir string, log logger.ILogger) *Manager {
	return &Manager{baseDir: baseDir, log: log}
}

// Path returns the session's root directory.
func (m *Manager) Path(sessionID uuid.UUID) string {
	return filepath.Join(m.baseDir, sessionID.String())
}

// SubdirPath returns one of the session's subdivisions.
func (m *Manager) SubdirPath(sessionID uuid.UUID, subdir string) string {
	return filepath.Join(m.Path(sessionID), subdir)
}

// Exists reports whether the session has a workspace tree.
func (m *Manager) Exists(sessionID uuid.UUID) bool {
	info, err := os.Stat(m.Path(sessionID))
	return err == nil && info.IsDir()
}

// Initialize creates the isolated session tree. Repeated calls succeed.
func (m *Manager) Initialize(sessionID uuid.UUID) error {
	for _, sub := range []string{SubdirUploads, SubdirProcessed, SubdirArtifacts} {
		if err := os.MkdirAll(m.SubdirPath(sessionID, sub), 0o755); err != nil {
			return fmt.Errorf("failed to initialize workspace for %s: %w", sessionID, err)
		}
	}
	return nil
}

// Save stream-writes a file into the session tree without buffering
// the whole payload. Zero-byte results are rejected and removed. Only
// the uploads path auto-heals a missing tree (an upload racing the
// cleanup of an old request); for every other path a missing tree
// means the session was burned, and the write must fail closed.
func (m *Manager) Save(sessionID uuid.UUID, subdir, filename string, r io.Reader) (string, int64, error) {
	dir := m.SubdirPath(sessionID, subdir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if subdir != SubdirUploads {
			return "", 0, fmt.Errorf("workspace for session %s is gone", sessionID)
		}
		if err := m.Initialize(sessionID); err != nil {
			return "", 0, err
		}
	}

	dest := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	written, err := io.Copy(f, r)
	closeErr := f.Close()
	if err != nil {
		os.Remove(dest)
		return "", 0, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if closeErr != nil {
		os.Remove(dest)
		return "", 0, fmt.Errorf("failed to flush %s: %w", dest, closeErr)
	}

	if written == 0 {
		os.Remove(dest)
		return "", 0, fmt.Errorf("rejected zero-byte upload: %s", filename)
	}

	// A successful write counts as activity; the expiry sweep reads the
	// root's mtime, so bump it past the file's own directory.
	now := time.Now()
	_ = os.Chtimes(m.Path(sessionID), now, now)

	return dest, written, nil
}

// List returns entry names under a session subdivision, or an empty
// slice if the directory is absent.
func (m *Manager) List(sessionID uuid.UUID, subdir string) ([]string, error) {
	entries, err := os.ReadDir(m.SubdirPath(sessionID, subdir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list workspace %s/%s: %w", sessionID, subdir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Destroy recursively removes the whole session tree. A missing tree is
// success (idempotent); a removal failure is logged critical and
// reported as false so the remaining burner steps still run.
func (m *Manager) Destroy(sessionID uuid.UUID) bool {
	root := m.Path(sessionID)

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return true
	}

	if err := os.RemoveAll(root); err != nil {
		m.log.Critical("workspace", "Failed to wipe session workspace", map[string]interface{}{
			"session_id": sessionID.String(),
			"path":       root,
			"error":      err.Error(),
		})
		return false
	}
	return true
}

// ListAll returns the session IDs that currently have a workspace tree,
// with the root's modification time. Used by the expiry sweeper.
func (m *Manager) ListAll() ([]SessionDir, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionDir{}, nil
		}
		return nil, fmt.Errorf("failed to scan workspace base: %w", err)
	}

	var out []SessionDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue // not a session tree
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SessionDir{ID: id, ModTime: info.ModTime()})
	}
	return out, nil
}

type SessionDir struct {
	ID      uuid.UUID
	ModTime time.Time
}
