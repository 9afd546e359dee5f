// Package hydrate enriches a converter's dry score into a persistable score
// record: calculated data, grade/lamp indices and ownership fields.
package hydrate

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiki-gg/scoretrack/internal/domain/games"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/internal/domain/rating"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
)

// Hydrator turns dry scores into score documents.
type Hydrator struct {
	log logger.Logger
	now func() int64
}

// Option applies a configuration option to the Hydrator.
type Option func(*Hydrator)

// WithLogger sets a custom logger for the hydrator.
func WithLogger(log logger.Logger) Option {
	return func(h *Hydrator) {
		if log != nil {
			h.log = log
		}
	}
}

// WithClock overrides the insertion-time source, for tests.
func WithClock(now func() int64) Option {
	return func(h *Hydrator) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates a Hydrator.
func New(opts ...Option) *Hydrator {
	h := &Hydrator{
		log: logger.Get().Named("hydrate"),
		now: func() int64 { return time.Now().UnixMilli() },
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Hydrate builds the score document for a converted play. Upstream
// validation has already accepted the lamp and grade labels; an index miss
// here is a data-quality defect and is surfaced, never silently stored as -1.
func (h *Hydrator) Hydrate(ctx context.Context, userID int, dry *model.DryScore, chart *model.Chart, song *model.Song, scoreID string) (*model.Score, error) {
	lampIndex := games.LampIndex(dry.Game, dry.ScoreData.Lamp)
	if lampIndex < 0 {
		h.log.Severe(ctx, "unrecognized lamp reached hydration",
			logger.String("game", string(dry.Game)),
			logger.String("lamp", dry.ScoreData.Lamp),
		)
		return nil, fmt.Errorf("unrecognized lamp %q for %s", dry.ScoreData.Lamp, dry.Game)
	}

	gradeIndex := games.GradeIndex(dry.Game, dry.ScoreData.Grade)
	if gradeIndex < 0 {
		h.log.Severe(ctx, "unrecognized grade reached hydration",
			logger.String("game", string(dry.Game)),
			logger.String("grade", dry.ScoreData.Grade),
		)
		return nil, fmt.Errorf("unrecognized grade %q for %s", dry.ScoreData.Grade, dry.Game)
	}

	calculatedData := rating.Calculate(dry, chart)

	score := &model.Score{
		ScoreID:      scoreID,
		UserID:       userID,
		SongID:       song.ID,
		ChartID:      chart.ChartID,
		Game:         dry.Game,
		Playtype:     chart.Playtype,
		Difficulty:   chart.Difficulty,
		Service:      dry.Service,
		ImportType:   dry.ImportType,
		Comment:      dry.Comment,
		TimeAchieved: dry.TimeAchieved,
		TimeAdded:    h.now(),
		ScoreData: model.ScoreData{
			Score:      dry.ScoreData.Score,
			Percent:    dry.ScoreData.Percent,
			Grade:      dry.ScoreData.Grade,
			GradeIndex: gradeIndex,
			Lamp:       dry.ScoreData.Lamp,
			LampIndex:  lampIndex,
			HitData:    dry.ScoreData.HitData,
			HitMeta:    dry.ScoreData.HitMeta,
		},
		CalculatedData: calculatedData,
		// PB promotion happens in separate deduplication logic, not here.
		IsScorePB: false,
		IsLampPB:  false,
	}

	return score, nil
}
