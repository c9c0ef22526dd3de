package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/emrys/duskball/internal/domain"
)

// GameStore is the slice of the storage layer the planner needs.
type GameStore interface {
	DeleteScheduledGames(ctx context.Context, division int, subdivision string) (int64, error)
	CreateGames(ctx context.Context, games []domain.Game) error
}

const insertBatchSize = 100

// Apply persists a generated fixture list. Any existing SCHEDULED games for
// the subdivision are cleared first so regeneration is idempotent, then the
// fixtures are inserted in bounded batches with retry rather than one
// unbounded transaction.
func Apply(ctx context.Context, store GameStore, division int, subdivision string, games []domain.Game) error {
	removed, err := store.DeleteScheduledGames(ctx, division, subdivision)
	if err != nil {
		return fmt.Errorf("clearing scheduled games for division %d %s: %w", division, subdivision, err)
	}
	if removed > 0 {
		log.Printf("Cleared %d previously scheduled games for division %d %s", removed, division, subdivision)
	}

	for start := 0; start < len(games); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(games) {
			end = len(games)
		}
		batch := games[start:end]

		policy := backoff.WithContext(backoff.WithMaxRetries(newInsertBackoff(), 4), ctx)
		if err := backoff.Retry(func() error {
			return store.CreateGames(ctx, batch)
		}, policy); err != nil {
			return fmt.Errorf("inserting fixture batch %d-%d: %w", start, end, err)
		}
	}

	log.Printf("Inserted %d fixtures for division %d %s", len(games), division, subdivision)
	return nil
}

func newInsertBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
