package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/log"
	"github.com/cbodonnell/ninetyfive/pkg/state"
)

// DefaultSaveInterval is how often unsaved sessions are retried.
const DefaultSaveInterval = 5 * time.Second

// SaveGameStateWorker retries writes for sessions whose last change did not
// reach the store, and flushes everything once more on shutdown.
type SaveGameStateWorker struct {
	directory *state.Directory
	interval  time.Duration
}

type NewSaveGameStateWorkerOptions struct {
	Directory *state.Directory
	Interval  time.Duration
}

func NewSaveGameStateWorker(opts NewSaveGameStateWorkerOptions) *SaveGameStateWorker {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultSaveInterval
	}
	return &SaveGameStateWorker{
		directory: opts.Directory,
		interval:  interval,
	}
}

func (w *SaveGameStateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *SaveGameStateWorker) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()
	if err := w.directory.FlushDirty(ctx); err != nil {
		log.Error("Failed to save game state: %v", err)
	}
}
