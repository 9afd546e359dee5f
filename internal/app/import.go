package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/convert"
	"github.com/hibiki-gg/scoretrack/internal/domain/hydrate"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
	"github.com/hibiki-gg/scoretrack/pkg/metrics"
)

// ImportResult is what one import batch produced.
type ImportResult struct {
	// ScoreIDs of the scores persisted by this batch, in payload order.
	ScoreIDs []string `json:"scoreIDs"`
	// Failures per rejected item, indexed by payload position.
	Failures []model.ItemFailure `json:"failures"`
	// SessionInfo holds one outcome per clustered score group.
	SessionInfo []model.SessionOutcome `json:"sessionInfo"`
	// Ratings are the recomputed profile figures per playtype.
	Ratings map[model.Playtype]map[string]float64 `json:"ratings,omitempty"`
}

// ImportBatch runs the full pipeline for one job: parse, convert, hydrate
// and persist each item, then cluster sessions and recompute ratings. Item
// failures are collected, never raised; a parse failure or a derived-state
// write failure is returned as an error.
func (s *Service) ImportBatch(ctx context.Context, job model.ImportJob) (*ImportResult, error) {
	batch, err := s.converter.Parse(job.ImportType, job.Payload)
	if err != nil {
		s.logger.Warn(ctx, "unparsable import payload",
			logger.String("jobID", job.JobID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("parse %s payload: %w", job.ImportType, err)
	}

	result := &ImportResult{}
	imported := make([]model.Score, 0, len(batch.Items))
	charts := make(map[string]*model.Chart)

	for i, itemFn := range batch.Items {
		score, chart, err := s.importItem(ctx, job.UserID, itemFn)
		if err != nil {
			kind, msg := classify(err)
			metrics.RecordConversionFailure(string(kind))
			if kind == model.FailureInternal {
				s.logger.Error(ctx, "internal failure importing item",
					logger.String("jobID", job.JobID),
					logger.Int("index", i),
					logger.Error(err),
				)
			}
			result.Failures = append(result.Failures, model.ItemFailure{Index: i, Kind: kind, Message: msg})
			continue
		}

		metrics.RecordScoreImported()
		imported = append(imported, *score)
		charts[chart.ChartID] = chart
		result.ScoreIDs = append(result.ScoreIDs, score.ScoreID)
	}

	if len(imported) == 0 {
		return result, nil
	}

	game := batch.Context.Game
	byPlaytype := make(map[model.Playtype][]model.Score)
	for _, sc := range imported {
		byPlaytype[sc.Playtype] = append(byPlaytype[sc.Playtype], sc)
	}
	playtypes := make([]model.Playtype, 0, len(byPlaytype))
	for pt := range byPlaytype {
		playtypes = append(playtypes, pt)
	}
	sort.Slice(playtypes, func(i, j int) bool { return playtypes[i] < playtypes[j] })

	// Clustering runs before PB promotion so deltas compare against the
	// bests as they stood when these plays happened.
	for _, pt := range playtypes {
		outcomes, err := s.clusterer.Cluster(ctx, job.UserID, game, pt, job.ImportType, byPlaytype[pt])
		result.SessionInfo = append(result.SessionInfo, outcomes...)
		if err != nil {
			return result, fmt.Errorf("session clustering for %s %s: %w", game, pt, err)
		}
	}

	if err := s.promotePBs(ctx, job.UserID, imported, charts); err != nil {
		return result, fmt.Errorf("personal-best promotion: %w", err)
	}

	result.Ratings = make(map[model.Playtype]map[string]float64, len(playtypes))
	for _, pt := range playtypes {
		figures, err := s.roller.Recalculate(ctx, job.UserID, game, pt)
		if err != nil {
			return result, fmt.Errorf("rating rollup for %s %s: %w", game, pt, err)
		}
		metrics.RecordRatingRecomputed()
		result.Ratings[pt] = figures
	}

	return result, nil
}

// importItem converts, dedupes, hydrates and persists one payload item.
func (s *Service) importItem(ctx context.Context, userID int, itemFn convert.ItemFunc) (*model.Score, *model.Chart, error) {
	res, err := itemFn(ctx)
	if err != nil {
		return nil, nil, err
	}

	dry := res.Dry
	scoreID := hydrate.ScoreID(userID, res.Chart.ChartID,
		dry.ScoreData.Score, dry.ScoreData.Percent,
		dry.ScoreData.Lamp, dry.ScoreData.Grade, dry.TimeAchieved)

	if s.deduper.SeenAndRecord(ctx, scoreID) {
		metrics.RecordScoreDuplicate()
		return nil, nil, errDuplicateScore
	}

	score, err := s.hydrator.Hydrate(ctx, userID, dry, res.Chart, res.Song, scoreID)
	if err != nil {
		s.deduper.Unrecord(ctx, scoreID)
		return nil, nil, err
	}

	if err := s.store.InsertScore(ctx, score); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.RecordScoreDuplicate()
			return nil, nil, errDuplicateScore
		}
		metrics.RecordStoreError()
		s.deduper.Unrecord(ctx, scoreID)
		return nil, nil, err
	}

	return score, res.Chart, nil
}

// classify maps an item error to the reported failure kind and message.
func classify(err error) (model.FailureKind, string) {
	if errors.Is(err, errDuplicateScore) {
		return model.FailureDuplicate, "this score has already been imported"
	}
	return convert.FailureKindOf(err)
}

// promotePBs folds the batch's new scores into per-chart personal bests:
// flips the IsScorePB/IsLampPB flags on the winning scores and rewrites the
// composed PB documents the rating rollup reads.
func (s *Service) promotePBs(ctx context.Context, userID int, scores []model.Score, charts map[string]*model.Chart) error {
	byChart := make(map[string][]model.Score)
	chartIDs := make([]string, 0, len(charts))
	for _, sc := range scores {
		if _, ok := byChart[sc.ChartID]; !ok {
			chartIDs = append(chartIDs, sc.ChartID)
		}
		byChart[sc.ChartID] = append(byChart[sc.ChartID], sc)
	}
	sort.Strings(chartIDs)

	oldPBs, err := s.store.FindScorePBs(ctx, userID, chartIDs)
	if err != nil {
		return err
	}

	for _, chartID := range chartIDs {
		chart := charts[chartID]

		candidates := byChart[chartID]
		oldPB, hadPB := oldPBs[chartID]
		if hadPB {
			candidates = append([]model.Score{oldPB}, candidates...)
		}

		scoreBest := candidates[0]
		lampBest := candidates[0]
		for _, c := range candidates[1:] {
			if c.ScoreData.Score > scoreBest.ScoreData.Score {
				scoreBest = c
			}
			if c.ScoreData.LampIndex > lampBest.ScoreData.LampIndex {
				lampBest = c
			}
		}

		if hadPB && oldPB.ScoreID != scoreBest.ScoreID {
			oldPB.IsScorePB = false
			if err := s.store.UpdateScore(ctx, &oldPB); err != nil {
				return err
			}
		}
		if !scoreBest.IsScorePB {
			scoreBest.IsScorePB = true
			if err := s.store.UpdateScore(ctx, &scoreBest); err != nil {
				return err
			}
		}
		if !lampBest.IsLampPB {
			lampBest.IsLampPB = true
			if err := s.store.UpdateScore(ctx, &lampBest); err != nil {
				return err
			}
		}

		pb := composePB(userID, chart, scoreBest, lampBest, candidates)
		if err := s.store.UpsertPB(ctx, pb); err != nil {
			return err
		}
	}

	return nil
}

// composePB joins the score-best and lamp-best plays into the stored PB
// document. Calculated data takes the per-metric maximum over all
// candidates, matching how rollups consume it.
func composePB(userID int, chart *model.Chart, scoreBest, lampBest model.Score, candidates []model.Score) *model.PB {
	data := scoreBest.ScoreData
	data.Lamp = lampBest.ScoreData.Lamp
	data.LampIndex = lampBest.ScoreData.LampIndex

	calc := make(map[string]float64)
	for _, c := range candidates {
		for k, v := range c.CalculatedData {
			if v > calc[k] {
				calc[k] = v
			}
		}
	}

	return &model.PB{
		UserID:         userID,
		ChartID:        chart.ChartID,
		Game:           chart.Game,
		Playtype:       chart.Playtype,
		IsPrimary:      chart.IsPrimary,
		ScoreData:      data,
		CalculatedData: calc,
	}
}
