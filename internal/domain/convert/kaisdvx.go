package convert

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/games"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// KaiSDVXScore is one play-history record from a Kai-style SDVX API pull.
type KaiSDVXScore struct {
	MusicID         int    `json:"music_id"`
	MusicDifficulty int    `json:"music_difficulty"`
	PlayedVersion   int    `json:"played_version"`
	ClearType       int    `json:"clear_type"`
	MaxChain        int    `json:"max_chain"`
	Score           int    `json:"score"`
	Critical        int    `json:"critical"`
	Near            int    `json:"near"`
	Error           int    `json:"error"`
	Early           int    `json:"early"`
	Late            int    `json:"late"`
	GaugeRate       int    `json:"gauge_rate"`
	Timestamp       string `json:"timestamp"`
}

const sdvxScoreMax = 10_000_000

// ParseKaiSDVX validates an API response body shaped as a JSON array of
// play-history records.
func ParseKaiSDVX(payload []byte) ([]KaiSDVXScore, error) {
	var probe interface{}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, parseErrorf("invalid Kai SDVX response: not valid JSON")
	}
	if _, ok := probe.([]interface{}); !ok {
		return nil, parseErrorf("invalid Kai SDVX response: not an array, received %T", probe)
	}

	var scores []KaiSDVXScore
	if err := json.Unmarshal(payload, &scores); err != nil {
		return nil, parseErrorf("invalid Kai SDVX response: %v", err)
	}
	return scores, nil
}

// validateKaiSDVX applies the per-record schema: bounded integers with
// field-path failure messages.
func validateKaiSDVX(s KaiSDVXScore) error {
	if s.MusicID <= 0 {
		return invalidField("music_id", "a positive integer", s.MusicID)
	}
	if s.MusicDifficulty < 0 || s.MusicDifficulty > 4 {
		return invalidField("music_difficulty", "an integer between 0 and 4", s.MusicDifficulty)
	}
	if s.PlayedVersion < 1 || s.PlayedVersion > 6 {
		return invalidField("played_version", "an integer between 1 and 6", s.PlayedVersion)
	}
	if s.ClearType < 0 || s.ClearType > 4 {
		return invalidField("clear_type", "an integer between 0 and 4", s.ClearType)
	}
	if s.Score < 0 || s.Score > sdvxScoreMax {
		return invalidField("score", "an integer between 0 and 10000000", s.Score)
	}
	if s.GaugeRate < 0 || s.GaugeRate > 100 {
		return invalidField("gauge_rate", "an integer between 0 and 100", s.GaugeRate)
	}
	return nil
}

// kaiSDVXDifficulty maps the API's numeric difficulty to the catalog label.
func kaiSDVXDifficulty(diff int) (string, error) {
	switch diff {
	case 0:
		return "NOV", nil
	case 1:
		return "ADV", nil
	case 2:
		return "EXH", nil
	case 3:
		return "INF", nil
	case 4:
		return "MXM", nil
	}
	return "", invalidScoref("invalid difficulty of %d - could not convert", diff)
}

// kaiSDVXLamp maps the API's clear_type to the catalog lamp.
func kaiSDVXLamp(clear int) (string, error) {
	switch clear {
	case 0:
		return "FAILED", nil
	case 1:
		return "CLEAR", nil
	case 2:
		return "EXCESSIVE CLEAR", nil
	case 3:
		return "ULTIMATE CHAIN", nil
	case 4:
		return "PERFECT ULTIMATE CHAIN", nil
	}
	return "", invalidScoref("invalid lamp of %d - could not convert", clear)
}

// ConvertKaiSDVX converts one Kai API record into a dry score with resolved
// song and chart references.
func (c *Converter) ConvertKaiSDVX(ctx context.Context, item KaiSDVXScore, bctx BatchContext, importType model.ImportType) (*Result, error) {
	if err := validateKaiSDVX(item); err != nil {
		return nil, err
	}

	difficulty, err := kaiSDVXDifficulty(item.MusicDifficulty)
	if err != nil {
		return nil, err
	}

	chart, err := c.store.FindChartByInGameID(ctx, model.GameSDVX, item.MusicID, difficulty, strconv.Itoa(item.PlayedVersion))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("could not find chart with songID %d (%s - version %d)", item.MusicID, difficulty, item.PlayedVersion)
		}
		return nil, err
	}

	song, err := c.resolveSongForChart(ctx, model.GameSDVX, chart)
	if err != nil {
		return nil, err
	}

	lamp, err := kaiSDVXLamp(item.ClearType)
	if err != nil {
		return nil, err
	}

	percent, err := games.ScoreToPercent(model.GameSDVX, float64(item.Score), chart)
	if err != nil {
		return nil, invalidScoref("could not derive percent: %v", err)
	}
	if max := games.PercentMax(model.GameSDVX); percent > max {
		return nil, invalidScoref("%s (%s %s): percent was greater than %.0f%% (%.2f%%)",
			song.Title, chart.Playtype, chart.Difficulty, max, percent)
	}
	grade := games.GradeFromPercent(model.GameSDVX, percent)

	timeAchieved := parseTimestamp(item.Timestamp)

	dry := &model.DryScore{
		Game:         model.GameSDVX,
		Service:      bctx.Service,
		ImportType:   importType,
		TimeAchieved: timeAchieved,
		ScoreData: model.DryScoreData{
			Score:   float64(item.Score),
			Percent: percent,
			Grade:   grade,
			Lamp:    lamp,
			HitData: map[string]int{
				"critical": item.Critical,
				"near":     item.Near,
				"miss":     item.Error,
			},
			HitMeta: map[string]float64{
				"fast":     float64(item.Early),
				"slow":     float64(item.Late),
				"gauge":    float64(item.GaugeRate),
				"maxCombo": float64(item.MaxChain),
			},
		},
	}

	return &Result{Song: song, Chart: chart, Dry: dry}, nil
}

// parseTimestamp turns an RFC3339-ish timestamp into unix milliseconds.
// Unparsable timestamps yield nil: the score still imports, it just cannot
// join a session.
func parseTimestamp(ts string) *int64 {
	if ts == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			ms := t.UnixMilli()
			return &ms
		}
	}
	return nil
}
