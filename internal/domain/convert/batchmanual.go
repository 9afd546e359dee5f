package convert

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/games"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
)

// BatchManualScore is one item of a batch-manual payload.
type BatchManualScore struct {
	Score        float64            `json:"score"`
	Lamp         string             `json:"lamp"`
	MatchType    string             `json:"matchType"`
	Identifier   string             `json:"identifier"`
	Playtype     model.Playtype     `json:"playtype,omitempty"`
	Difficulty   string             `json:"difficulty,omitempty"`
	Comment      string             `json:"comment,omitempty"`
	TimeAchieved *int64             `json:"timeAchieved,omitempty"`
	HitData      map[string]int     `json:"hitData,omitempty"`
	HitMeta      map[string]float64 `json:"hitMeta,omitempty"`
}

type batchManualHead struct {
	Service string `json:"service"`
	Game    string `json:"game"`
	Version string `json:"version,omitempty"`
}

type batchManual struct {
	Head *batchManualHead   `json:"head"`
	Body []BatchManualScore `json:"body"`
}

// Known match modes for batch-manual items.
const (
	MatchTypeSongID   = "songID"
	MatchTypeTitle    = "title"
	MatchTypeHash     = "hash"
	MatchTypeInGameID = "inGameID"
)

// ParseBatchManual validates the payload's structure and splits it into a
// batch context and its raw items. Structural failures are ParseErrors and
// abort the batch; per-item content is not validated here.
func ParseBatchManual(payload []byte) (BatchContext, []BatchManualScore, error) {
	var probe interface{}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return BatchContext{}, nil, parseErrorf("invalid BATCH-MANUAL: not valid JSON")
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return BatchContext{}, nil, parseErrorf("invalid BATCH-MANUAL: not an object, received %T", probe)
	}

	var bm batchManual
	if err := json.Unmarshal(payload, &bm); err != nil {
		return BatchContext{}, nil, parseErrorf("invalid BATCH-MANUAL: %v", err)
	}

	if bm.Head == nil || bm.Head.Game == "" {
		return BatchContext{}, nil, parseErrorf("could not retrieve head.game - is this valid BATCH-MANUAL?")
	}
	if bm.Head.Service == "" {
		return BatchContext{}, nil, parseErrorf("could not retrieve head.service - is this valid BATCH-MANUAL?")
	}

	game := model.Game(bm.Head.Game)
	if !games.IsSupported(game) {
		names := make([]string, 0, len(games.Supported()))
		for _, g := range games.Supported() {
			names = append(names, string(g))
		}
		return BatchContext{}, nil, parseErrorf("invalid game %s - expected any of %s", bm.Head.Game, strings.Join(names, ", "))
	}

	if bm.Body == nil {
		return BatchContext{}, nil, parseErrorf("could not retrieve body - is this valid BATCH-MANUAL?")
	}

	bctx := BatchContext{
		Game:    game,
		Service: bm.Head.Service,
		Version: bm.Head.Version,
	}
	return bctx, bm.Body, nil
}

// ConvertBatchManual converts one batch-manual item into a dry score with
// resolved song and chart references.
func (c *Converter) ConvertBatchManual(ctx context.Context, item BatchManualScore, bctx BatchContext, importType model.ImportType) (*Result, error) {
	game := bctx.Game

	if item.Score < 0 {
		return nil, invalidField("score", "a non-negative number", item.Score)
	}
	if games.LampIndex(game, item.Lamp) < 0 {
		return nil, invalidField("lamp", "any of "+strings.Join(games.Lamps(game), ", "), item.Lamp)
	}

	song, chart, err := c.resolveMatchType(ctx, item, bctx)
	if err != nil {
		return nil, err
	}

	percent, err := games.ScoreToPercent(game, item.Score, chart)
	if err != nil {
		return nil, invalidScoref("could not derive percent: %v", err)
	}

	if max := games.PercentMax(game); percent > max {
		return nil, invalidScoref("%s (%s %s): percent was greater than %.0f%% (%.2f%%)",
			song.Title, chart.Playtype, chart.Difficulty, max, percent)
	}

	grade := games.GradeFromPercent(game, percent)

	service := bctx.Service
	switch importType {
	case model.ImportTypeDirectManual:
		service += " (DIRECT-MANUAL)"
	case model.ImportTypeBatchManual:
		service += " (BATCH-MANUAL)"
	}

	dry := &model.DryScore{
		Game:         game,
		Service:      service,
		Comment:      item.Comment,
		ImportType:   importType,
		TimeAchieved: item.TimeAchieved,
		ScoreData: model.DryScoreData{
			Score:   item.Score,
			Percent: percent,
			Grade:   grade,
			Lamp:    item.Lamp,
			HitData: item.HitData,
			HitMeta: item.HitMeta,
		},
	}

	return &Result{Song: song, Chart: chart, Dry: dry}, nil
}

// resolveMatchType resolves the target song and chart using the item's
// declared match mode. An unknown match mode is an internal defect: the
// schema layer should have rejected it.
func (c *Converter) resolveMatchType(ctx context.Context, item BatchManualScore, bctx BatchContext) (*model.Song, *model.Chart, error) {
	game := bctx.Game

	switch item.MatchType {
	case MatchTypeHash:
		if game != model.GameBMS {
			return nil, nil, invalidScoref("cannot use hash lookup on %s", game)
		}

		chart, err := c.store.FindChartByHash(ctx, game, item.Identifier)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, notFoundf("cannot find chart for hash %s", item.Identifier)
			}
			return nil, nil, err
		}

		song, err := c.resolveSongForChart(ctx, game, chart)
		if err != nil {
			return nil, nil, err
		}
		return song, chart, nil

	case MatchTypeSongID:
		songID, err := strconv.Atoi(item.Identifier)
		if err != nil || songID < 0 {
			return nil, nil, invalidField("identifier", "a stringified positive integer songID", item.Identifier)
		}

		song, err := c.store.FindSongByID(ctx, game, songID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, notFoundf("cannot find song with songID %s", item.Identifier)
			}
			return nil, nil, err
		}

		chart, err := c.resolveChartFromSong(ctx, song, item, bctx)
		if err != nil {
			return nil, nil, err
		}
		return song, chart, nil

	case MatchTypeTitle:
		song, err := c.store.FindSongByTitle(ctx, game, item.Identifier)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, notFoundf("cannot find song with title %s", item.Identifier)
			}
			return nil, nil, err
		}

		chart, err := c.resolveChartFromSong(ctx, song, item, bctx)
		if err != nil {
			return nil, nil, err
		}
		return song, chart, nil

	case MatchTypeInGameID:
		inGameID, err := strconv.Atoi(item.Identifier)
		if err != nil || inGameID < 0 {
			return nil, nil, invalidField("identifier", "a stringified positive integer in-game ID", item.Identifier)
		}
		if item.Difficulty == "" {
			return nil, nil, invalidScoref("missing 'difficulty' field, but is needed for inGameID lookup")
		}
		if bctx.Version == "" {
			return nil, nil, invalidScoref("missing head 'version' field, but is needed for inGameID lookup")
		}

		chart, err := c.store.FindChartByInGameID(ctx, game, inGameID, item.Difficulty, bctx.Version)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, notFoundf("cannot find chart for in-game ID %s (%s, version %s)", item.Identifier, item.Difficulty, bctx.Version)
			}
			return nil, nil, err
		}

		song, err := c.resolveSongForChart(ctx, game, chart)
		if err != nil {
			return nil, nil, err
		}
		return song, chart, nil
	}

	c.log.Error(ctx, "invalid matchType ended up in conversion - should have been rejected upstream",
		logger.String("matchType", item.MatchType),
	)
	return nil, nil, internalf("invalid matchType %s", item.MatchType)
}

// resolveChartFromSong resolves a chart from its parent song via
// playtype+difficulty, optionally version-scoped.
func (c *Converter) resolveChartFromSong(ctx context.Context, song *model.Song, item BatchManualScore, bctx BatchContext) (*model.Chart, error) {
	game := bctx.Game

	if item.Playtype == "" {
		return nil, invalidScoref("missing 'playtype' field, but was necessary for this lookup")
	}
	if !games.ValidPlaytype(game, item.Playtype) {
		return nil, invalidField("playtype", "a valid playtype for "+string(game), string(item.Playtype))
	}
	if item.Difficulty == "" {
		return nil, invalidScoref("missing 'difficulty' field, but was necessary for this lookup")
	}
	if !games.ValidDifficulty(game, item.Difficulty) {
		return nil, invalidField("difficulty", "a valid difficulty for "+string(game), item.Difficulty)
	}

	var (
		chart *model.Chart
		err   error
	)
	if bctx.Version != "" {
		chart, err = c.store.FindChartBySongPTDFVersion(ctx, game, song.ID, item.Playtype, item.Difficulty, bctx.Version)
	} else {
		chart, err = c.store.FindChartBySongPTDF(ctx, game, song.ID, item.Playtype, item.Difficulty)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("cannot find chart for %s (%s %s)", song.Title, item.Playtype, item.Difficulty)
		}
		return nil, err
	}
	return chart, nil
}
