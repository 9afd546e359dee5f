// Package catalog seeds the song/chart reference data from a JSON file at
// startup. The pipeline treats the catalog as read-only afterwards.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/games"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
)

// File is the on-disk catalog shape.
type File struct {
	Songs  []model.Song  `json:"songs"`
	Charts []model.Chart `json:"charts"`
}

// Seed loads the catalog file at path and upserts its songs and charts into
// the store. Entries for unsupported games are skipped with a warning rather
// than failing the whole seed.
func Seed(ctx context.Context, store repository.Store, path string) error {
	log := logger.Get().Named("catalog")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse catalog %s: %w", path, err)
	}

	var songs, charts int
	for i := range f.Songs {
		song := &f.Songs[i]
		if !games.IsSupported(song.Game) {
			log.Warn(ctx, "skipping song for unsupported game",
				logger.String("game", string(song.Game)),
				logger.Int("songID", song.ID),
			)
			continue
		}
		if err := store.UpsertSong(ctx, song); err != nil {
			return fmt.Errorf("seed song %d: %w", song.ID, err)
		}
		songs++
	}

	for i := range f.Charts {
		chart := &f.Charts[i]
		if !games.IsSupported(chart.Game) {
			log.Warn(ctx, "skipping chart for unsupported game",
				logger.String("game", string(chart.Game)),
				logger.String("chartID", chart.ChartID),
			)
			continue
		}
		if err := store.UpsertChart(ctx, chart); err != nil {
			return fmt.Errorf("seed chart %s: %w", chart.ChartID, err)
		}
		charts++
	}

	log.Info(ctx, "catalog seeded",
		logger.Int("songs", songs),
		logger.Int("charts", charts),
	)
	return nil
}
