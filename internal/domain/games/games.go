// Package games holds the static per-title configuration tables: lamp and
// grade enumerations, grade boundaries, percent maxima and score-to-percent
// formulas. The tables are reference data; nothing here writes.
package games

import (
	"fmt"

	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// lamps maps each game to its ordered clear-status enumeration, worst first.
var lamps = map[model.Game][]string{
	model.GameIIDX:   {"NO PLAY", "FAILED", "ASSIST CLEAR", "EASY CLEAR", "CLEAR", "HARD CLEAR", "EX HARD CLEAR", "FULL COMBO"},
	model.GameBMS:    {"NO PLAY", "FAILED", "ASSIST CLEAR", "EASY CLEAR", "CLEAR", "HARD CLEAR", "EX HARD CLEAR", "FULL COMBO"},
	model.GameSDVX:   {"FAILED", "CLEAR", "EXCESSIVE CLEAR", "ULTIMATE CHAIN", "PERFECT ULTIMATE CHAIN"},
	model.GameUSC:    {"FAILED", "CLEAR", "EXCESSIVE CLEAR", "ULTIMATE CHAIN", "PERFECT ULTIMATE CHAIN"},
	model.GameDDR:    {"FAILED", "CLEAR", "FULL COMBO", "GREAT FULL COMBO", "PERFECT FULL COMBO", "MARVELOUS FULL COMBO"},
	model.GameMuseca: {"FAILED", "CLEAR", "CONNECT ALL", "PERFECT CONNECT ALL"},
}

// grades maps each game to its ordered grade enumeration, worst first.
var grades = map[model.Game][]string{
	model.GameIIDX:   {"F", "E", "D", "C", "B", "A", "AA", "AAA", "MAX-", "MAX"},
	model.GameBMS:    {"F", "E", "D", "C", "B", "A", "AA", "AAA", "MAX-", "MAX"},
	model.GameSDVX:   {"D", "C", "B", "A", "A+", "AA", "AA+", "AAA", "AAA+", "S"},
	model.GameUSC:    {"D", "C", "B", "A", "A+", "AA", "AA+", "AAA", "AAA+", "S"},
	model.GameDDR:    {"D", "C", "B", "A", "AA", "AAA"},
	model.GameMuseca: {"没", "拙", "凡", "佳", "良", "優", "秀", "傑", "傑G"},
}

// gradeBoundaries holds the inclusive lower percent bound for each grade,
// index-aligned with the grades table.
var gradeBoundaries = map[model.Game][]float64{
	model.GameIIDX:   {0, 22.22, 33.33, 44.44, 55.55, 66.66, 77.77, 88.88, 94.44, 100},
	model.GameBMS:    {0, 22.22, 33.33, 44.44, 55.55, 66.66, 77.77, 88.88, 94.44, 100},
	model.GameSDVX:   {0, 70, 80, 87, 90, 93, 95, 97, 98, 99},
	model.GameUSC:    {0, 70, 80, 87, 90, 93, 95, 97, 98, 99},
	model.GameDDR:    {0, 59, 69, 79, 89, 99},
	model.GameMuseca: {0, 60, 70, 80, 85, 90, 95, 97.5, 100},
}

// percentMax caps the derived percent per game. Conversions above this are
// rejected, never clamped.
var percentMax = map[model.Game]float64{
	model.GameIIDX:   100,
	model.GameBMS:    100,
	model.GameSDVX:   100,
	model.GameUSC:    100,
	model.GameDDR:    100,
	model.GameMuseca: 100,
}

// playtypes maps each game to its valid play-mode variants.
var playtypes = map[model.Game][]model.Playtype{
	model.GameIIDX:   {model.PlaytypeSP, model.PlaytypeDP},
	model.GameBMS:    {model.PlaytypeSP, model.PlaytypeDP},
	model.GameSDVX:   {model.PlaytypeSingle},
	model.GameUSC:    {model.PlaytypeSingle},
	model.GameDDR:    {model.PlaytypeSP, model.PlaytypeDP},
	model.GameMuseca: {model.PlaytypeSingle},
}

// difficulties maps each game to its valid difficulty labels.
var difficulties = map[model.Game][]string{
	model.GameIIDX:   {"BEGINNER", "NORMAL", "HYPER", "ANOTHER", "LEGGENDARIA"},
	model.GameBMS:    {"BEGINNER", "NORMAL", "HYPER", "ANOTHER", "INSANE"},
	model.GameSDVX:   {"NOV", "ADV", "EXH", "INF", "GRV", "HVN", "VVD", "MXM"},
	model.GameUSC:    {"NOV", "ADV", "EXH", "INF"},
	model.GameDDR:    {"BEGINNER", "BASIC", "DIFFICULT", "EXPERT", "CHALLENGE"},
	model.GameMuseca: {"Green", "Yellow", "Red"},
}

// IsSupported reports whether the game is a known title.
func IsSupported(game model.Game) bool {
	_, ok := lamps[game]
	return ok
}

// Supported returns all known titles.
func Supported() []model.Game {
	return []model.Game{
		model.GameIIDX, model.GameSDVX, model.GameDDR,
		model.GameBMS, model.GameUSC, model.GameMuseca,
	}
}

// Lamps returns the game's ordered lamp enumeration.
func Lamps(game model.Game) []string {
	return lamps[game]
}

// Grades returns the game's ordered grade enumeration.
func Grades(game model.Game) []string {
	return grades[game]
}

// LampIndex returns the position of lamp in the game's enumeration, or -1
// if the label is not recognized.
func LampIndex(game model.Game, lamp string) int {
	for i, l := range lamps[game] {
		if l == lamp {
			return i
		}
	}
	return -1
}

// GradeIndex returns the position of grade in the game's enumeration, or -1
// if the label is not recognized.
func GradeIndex(game model.Game, grade string) int {
	for i, g := range grades[game] {
		if g == grade {
			return i
		}
	}
	return -1
}

// PercentMax returns the title's maximum reachable percent.
func PercentMax(game model.Game) float64 {
	return percentMax[game]
}

// ValidPlaytype reports whether pt is a valid playtype for the game.
func ValidPlaytype(game model.Game, pt model.Playtype) bool {
	for _, p := range playtypes[game] {
		if p == pt {
			return true
		}
	}
	return false
}

// ValidDifficulty reports whether diff is a valid difficulty label for the game.
func ValidDifficulty(game model.Game, diff string) bool {
	for _, d := range difficulties[game] {
		if d == diff {
			return true
		}
	}
	return false
}

// ScoreToPercent derives the percent for a raw score using the title's
// formula. EX-score titles divide by twice the chart's notecount; fixed-cap
// titles divide by the score ceiling.
func ScoreToPercent(game model.Game, score float64, chart *model.Chart) (float64, error) {
	switch game {
	case model.GameIIDX, model.GameBMS:
		if chart.Notecount <= 0 {
			return 0, fmt.Errorf("chart %s has no notecount; cannot derive percent", chart.ChartID)
		}
		return score / (float64(chart.Notecount) * 2) * 100, nil
	case model.GameSDVX, model.GameUSC, model.GameMuseca:
		return score / 10_000_000 * 100, nil
	case model.GameDDR:
		return score / 1_000_000 * 100, nil
	default:
		return 0, fmt.Errorf("unsupported game %s", game)
	}
}

// GradeFromPercent classifies percent into the title's grade, using the
// inclusive lower bound per grade.
func GradeFromPercent(game model.Game, percent float64) string {
	gs := grades[game]
	bounds := gradeBoundaries[game]
	grade := gs[0]
	for i, b := range bounds {
		if percent >= b {
			grade = gs[i]
		}
	}
	return grade
}
