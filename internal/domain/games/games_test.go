package games_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hibiki-gg/scoretrack/internal/domain/games"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

func TestEnumerations(t *testing.T) {
	Convey("Given the per-title enumeration tables", t, func() {
		Convey("When looking up lamp indices", func() {
			So(games.LampIndex(model.GameIIDX, "NO PLAY"), ShouldEqual, 0)
			So(games.LampIndex(model.GameIIDX, "FULL COMBO"), ShouldEqual, 7)
			So(games.LampIndex(model.GameSDVX, "PERFECT ULTIMATE CHAIN"), ShouldEqual, 4)

			Convey("Then unrecognized labels yield -1", func() {
				So(games.LampIndex(model.GameIIDX, "SPEED CLEAR"), ShouldEqual, -1)
				So(games.LampIndex(model.Game("pop'n"), "CLEAR"), ShouldEqual, -1)
			})
		})

		Convey("When looking up grade indices", func() {
			So(games.GradeIndex(model.GameIIDX, "AAA"), ShouldEqual, 7)
			So(games.GradeIndex(model.GameSDVX, "S"), ShouldEqual, 9)
			So(games.GradeIndex(model.GameDDR, "ZZZ"), ShouldEqual, -1)
		})

		Convey("When checking supported games", func() {
			So(games.IsSupported(model.GameBMS), ShouldBeTrue)
			So(games.IsSupported(model.Game("jubeat")), ShouldBeFalse)
			So(len(games.Supported()), ShouldEqual, 6)
		})

		Convey("When validating playtypes and difficulties", func() {
			So(games.ValidPlaytype(model.GameIIDX, model.PlaytypeSP), ShouldBeTrue)
			So(games.ValidPlaytype(model.GameIIDX, model.PlaytypeSingle), ShouldBeFalse)
			So(games.ValidPlaytype(model.GameSDVX, model.PlaytypeSingle), ShouldBeTrue)
			So(games.ValidDifficulty(model.GameSDVX, "MXM"), ShouldBeTrue)
			So(games.ValidDifficulty(model.GameSDVX, "ANOTHER"), ShouldBeFalse)
		})
	})
}

func TestScoreToPercent(t *testing.T) {
	Convey("Given the score-to-percent formulas", t, func() {
		Convey("When converting an EX-score title", func() {
			chart := &model.Chart{ChartID: "c1", Notecount: 1000}

			percent, err := games.ScoreToPercent(model.GameIIDX, 1500, chart)
			So(err, ShouldBeNil)
			So(percent, ShouldEqual, 75)

			Convey("Then a chart without a notecount is an error", func() {
				_, err := games.ScoreToPercent(model.GameIIDX, 1500, &model.Chart{ChartID: "c2"})
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When converting a fixed-cap title", func() {
			percent, err := games.ScoreToPercent(model.GameSDVX, 9_500_000, &model.Chart{})
			So(err, ShouldBeNil)
			So(percent, ShouldEqual, 95)

			percent, err = games.ScoreToPercent(model.GameDDR, 890_000, &model.Chart{})
			So(err, ShouldBeNil)
			So(percent, ShouldEqual, 89)
		})

		Convey("When converting an unsupported title", func() {
			_, err := games.ScoreToPercent(model.Game("jubeat"), 100, &model.Chart{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGradeFromPercent(t *testing.T) {
	Convey("Given the grade boundary tables", t, func() {
		Convey("Then percents classify by inclusive lower bound", func() {
			So(games.GradeFromPercent(model.GameIIDX, 0), ShouldEqual, "F")
			So(games.GradeFromPercent(model.GameIIDX, 88.87), ShouldEqual, "AA")
			So(games.GradeFromPercent(model.GameIIDX, 88.88), ShouldEqual, "AAA")
			So(games.GradeFromPercent(model.GameIIDX, 100), ShouldEqual, "MAX")
			So(games.GradeFromPercent(model.GameSDVX, 99), ShouldEqual, "S")
			So(games.GradeFromPercent(model.GameSDVX, 98.99), ShouldEqual, "AAA+")
			So(games.GradeFromPercent(model.GameDDR, 89), ShouldEqual, "AA")
		})

		Convey("Then every title caps at 100 percent", func() {
			for _, g := range games.Supported() {
				So(games.PercentMax(g), ShouldEqual, 100)
			}
		})
	})
}
