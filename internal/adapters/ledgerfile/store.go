package ledgerfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Store implements ports.LedgerStore as one JSON document on disk,
// rewritten atomically via a temp file and rename.
type Store struct {
	path   string
	logger ports.Logger
}

// NewStore creates the parent directory if needed and returns the
// store. The ledger file itself is only created on the first Save.
func NewStore(path string, logger ports.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("ledgerfile: %w: empty path", ports.ErrConfiguration)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledgerfile: create %s: %w", dir, err)
		}
	}
	return &Store{path: path, logger: logger}, nil
}

// Save atomically rewrites the ledger document. The write goes to a
// sibling temp file first so a crash mid-write can never truncate the
// previous good snapshot.
func (s *Store) Save(ctx context.Context, state *domain.LedgerState) error {
	op := "Save"
	if state == nil {
		return fmt.Errorf("%s: %w: nil state", op, ports.ErrInvalidInput)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrPersistFailed, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrPersistFailed, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%s: %w: %w", op, ports.ErrPersistFailed, err)
	}
	return nil
}

// Load reads the persisted document. A missing file is a normal first
// run; a corrupt file is logged and replaced by an empty state rather
// than refusing to start.
func (s *Store) Load(ctx context.Context) (*domain.LedgerState, error) {
	op := "Load"

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewLedgerState(), nil
		}
		s.logger.Warn(ctx, op+": ledger unreadable, starting empty", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return domain.NewLedgerState(), nil
	}

	var state domain.LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn(ctx, op+": ledger corrupt, starting empty", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return domain.NewLedgerState(), nil
	}
	if state.Positions == nil {
		state.Positions = make(map[domain.Address]*domain.Position)
	}
	return &state, nil
}

var _ ports.LedgerStore = (*Store)(nil)
