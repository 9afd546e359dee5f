// Package rating implements the calculated-data engine: per-score rating
// figures and the profile-level rollup over personal bests.
//
// The per-score formulas are deliberately simple monotone functions of
// (percent|lamp, chart level); they exist to rank plays consistently, not to
// replicate any arcade network's exact numbers.
package rating

import (
	"math"

	"github.com/hibiki-gg/scoretrack/internal/domain/games"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// Named rating figures produced per score.
const (
	MetricRating     = "rating"
	MetricLampRating = "lampRating"
	MetricBPI        = "BPI"
	MetricVF4        = "VF4"
	MetricVF5        = "VF5"
	MetricMFCP       = "MFCP"
)

// Calculate derives the named rating figures for one play. Every game gets
// the generic score and lamp ratings; some titles add their own figures on
// top, which feed the custom profile rollups.
func Calculate(dry *model.DryScore, chart *model.Chart) map[string]float64 {
	percent := dry.ScoreData.Percent
	level := chart.LevelNum

	out := map[string]float64{
		MetricRating:     scoreRating(percent, level),
		MetricLampRating: lampRating(dry.Game, dry.ScoreData.Lamp, level),
	}

	switch dry.Game {
	case model.GameIIDX:
		// Zero below the AAA boundary; scales to 100 at a perfect.
		out[MetricBPI] = math.Max(0, (percent-88.88)*9)
	case model.GameSDVX, model.GameUSC:
		// VOLFORCE-style single-chart contributions.
		ratio := dry.ScoreData.Score / 10_000_000
		out[MetricVF4] = math.Floor(level * 2 * ratio * 25)
		out[MetricVF5] = math.Floor(level*ratio*lampCoefficient(dry.Game, dry.ScoreData.Lamp)*100) / 100
	case model.GameDDR:
		if dry.ScoreData.Lamp == "MARVELOUS FULL COMBO" {
			out[MetricMFCP] = mfcPoints(level)
		}
	}

	return out
}

// scoreRating scales the chart level by play quality. Below 50% a play
// contributes nothing.
func scoreRating(percent, level float64) float64 {
	if percent < 50 {
		return 0
	}
	return level * (percent - 50) / 50 * 2
}

// lampRating scales the chart level by clear severity.
func lampRating(game model.Game, lamp string, level float64) float64 {
	ls := games.Lamps(game)
	idx := games.LampIndex(game, lamp)
	if idx <= 0 || len(ls) < 2 {
		return 0
	}
	return level * float64(idx) / float64(len(ls)-1) * 2
}

// lampCoefficient weights the VOLFORCE-style figure by clear type.
func lampCoefficient(game model.Game, lamp string) float64 {
	switch games.LampIndex(game, lamp) {
	case 1: // CLEAR
		return 1.0
	case 2: // EXCESSIVE CLEAR
		return 1.02
	case 3: // ULTIMATE CHAIN
		return 1.05
	case 4: // PERFECT ULTIMATE CHAIN
		return 1.10
	default:
		return 0.5
	}
}

// mfcPoints awards flat points per marvelous full combo, stepped by level.
func mfcPoints(level float64) float64 {
	switch {
	case level >= 15:
		return 25
	case level >= 13:
		return 15
	case level >= 11:
		return 10
	case level >= 8:
		return 4
	default:
		return 1
	}
}

// SessionCalculatedData aggregates member scores into the session's figures:
// the mean score rating plus the peak single-score rating.
func SessionCalculatedData(scores []model.Score) map[string]float64 {
	if len(scores) == 0 {
		return map[string]float64{}
	}

	var sum, peak float64
	for _, sc := range scores {
		r := sc.CalculatedData[MetricRating]
		sum += r
		if r > peak {
			peak = r
		}
	}

	return map[string]float64{
		"avgRating":  sum / float64(len(scores)),
		"peakRating": peak,
	}
}
