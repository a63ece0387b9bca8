package deadletter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/cascade/id"
)

// Replay starts a fresh chain from a dead-letter entry's job and
// parameter snapshot, then marks the entry as replayed. The new chain
// gets its own chain ID and a clean attempt counter.
func (s *Service) Replay(ctx context.Context, entryID id.DeadLetterID) (id.ChainID, error) {
	entry, err := s.store.GetDeadLetter(ctx, entryID)
	if err != nil {
		return id.ChainID{}, fmt.Errorf("cascade/deadletter: replay %s: %w", entryID, err)
	}

	s.startsMu.RLock()
	start := s.starts[entry.Kind]
	s.startsMu.RUnlock()
	if start == nil {
		return id.ChainID{}, fmt.Errorf("cascade/deadletter: replay %s: no %s engine bound", entryID, entry.Kind)
	}

	chainID, err := start(ctx, entry.Job, entry.Params.Clone())
	if err != nil {
		return id.ChainID{}, fmt.Errorf("cascade/deadletter: replay %s: %w", entryID, err)
	}

	if err := s.store.MarkReplayed(ctx, entryID); err != nil {
		// The chain is already started. Log but don't fail.
		s.logger.Error("mark replayed error",
			slog.String("entry_id", entryID.String()),
			slog.String("error", err.Error()),
		)
		return chainID, nil
	}

	s.logger.Info("dead letter replayed",
		slog.String("entry_id", entryID.String()),
		slog.String("chain_id", chainID.String()),
		slog.String("job", entry.Job),
	)
	return chainID, nil
}
