package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SeedSources populates the store with the configured default sources when
// the sources table is empty. It returns the number of sources inserted;
// a non-empty store is left untouched so operator edits survive restarts.
func SeedSources(ctx context.Context, st Store, defaults []Source, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	existing, err := st.ListSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug("sources already present, skipping seed",
			zap.Int("count", len(existing)))
		return 0, nil
	}

	for _, src := range defaults {
		stored, err := st.UpsertSource(ctx, src)
		if err != nil {
			return 0, fmt.Errorf("seed source %q: %w", src.Name, err)
		}
		logger.Info("seeded source",
			zap.Int64("id", stored.ID),
			zap.String("name", stored.Name),
			zap.String("type", string(stored.Type)),
		)
	}
	return len(defaults), nil
}
