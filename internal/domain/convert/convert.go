// Package convert implements the converter layer: per-source-format
// functions turning raw payloads into a canonical dry score plus resolved
// chart and song references. Converters only read the catalog; they never
// write.
package convert

import (
	"context"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
)

// Result is a converter's output for one item.
type Result struct {
	Song  *model.Song
	Chart *model.Chart
	Dry   *model.DryScore
}

// BatchContext carries per-batch context shared by all items of a payload.
type BatchContext struct {
	Game    model.Game
	Service string
	// Version optionally scopes chart lookups to a catalog version.
	Version string
}

// Converter resolves raw score items against the catalog.
type Converter struct {
	store repository.Store
	log   logger.Logger
}

// Option applies a configuration option to the Converter.
type Option func(*Converter)

// WithLogger sets a custom logger for the converter.
func WithLogger(log logger.Logger) Option {
	return func(c *Converter) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Converter reading from the given catalog store.
func New(store repository.Store, opts ...Option) *Converter {
	c := &Converter{
		store: store,
		log:   logger.Get().Named("convert"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// resolveSongForChart loads the parent song of a resolved chart. A chart
// without a parent song is a catalog desync, not the submitter's fault.
func (c *Converter) resolveSongForChart(ctx context.Context, game model.Game, chart *model.Chart) (*model.Song, error) {
	song, err := c.store.FindSongByID(ctx, game, chart.SongID)
	if err != nil {
		c.log.Severe(ctx, "song-chart desync: chart has no parent song",
			logger.String("game", string(game)),
			logger.Int("songID", chart.SongID),
			logger.String("chartID", chart.ChartID),
		)
		return nil, internalf("song %d has charts but no parent song (%s)", chart.SongID, game)
	}
	return song, nil
}
