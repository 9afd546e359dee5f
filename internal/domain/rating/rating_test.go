package rating_test

import (
	"context"
	"strconv"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/internal/domain/rating"
)

func dryScore(game model.Game, score, percent float64, lamp string) *model.DryScore {
	return &model.DryScore{
		Game: game,
		ScoreData: model.DryScoreData{
			Score: score, Percent: percent, Lamp: lamp,
		},
	}
}

func TestCalculate(t *testing.T) {
	Convey("Given the per-score rating formulas", t, func() {
		chart := &model.Chart{LevelNum: 12}

		Convey("When calculating a solid iidx play", func() {
			out := rating.Calculate(dryScore(model.GameIIDX, 2000, 90, "HARD CLEAR"), chart)

			So(out["rating"], ShouldAlmostEqual, 19.2, 0.0001)
			So(out["lampRating"], ShouldBeGreaterThan, 0)
			So(out["BPI"], ShouldAlmostEqual, (90-88.88)*9, 0.0001)
			So(out, ShouldNotContainKey, "VF4")
		})

		Convey("When the percent is below half", func() {
			out := rating.Calculate(dryScore(model.GameIIDX, 500, 25, "FAILED"), chart)
			So(out["rating"], ShouldEqual, 0)
		})

		Convey("When calculating an sdvx play", func() {
			out := rating.Calculate(dryScore(model.GameSDVX, 9_500_000, 95, "EXCESSIVE CLEAR"), chart)

			So(out, ShouldContainKey, "VF4")
			So(out, ShouldContainKey, "VF5")
			So(out["VF4"], ShouldBeGreaterThan, 0)
			So(out["VF5"], ShouldBeGreaterThan, 0)

			Convey("Then a better lamp yields a higher VF5", func() {
				puc := rating.Calculate(dryScore(model.GameSDVX, 9_500_000, 95, "PERFECT ULTIMATE CHAIN"), chart)
				So(puc["VF5"], ShouldBeGreaterThan, out["VF5"])
			})
		})

		Convey("When calculating a ddr marvelous full combo", func() {
			out := rating.Calculate(dryScore(model.GameDDR, 990_000, 99, "MARVELOUS FULL COMBO"), chart)
			So(out["MFCP"], ShouldBeGreaterThan, 0)

			Convey("Then any lesser lamp earns no MFC points", func() {
				lesser := rating.Calculate(dryScore(model.GameDDR, 990_000, 99, "PERFECT FULL COMBO"), chart)
				So(lesser, ShouldNotContainKey, "MFCP")
			})
		})
	})
}

func TestSessionCalculatedData(t *testing.T) {
	Convey("Given session members with score ratings", t, func() {
		scores := []model.Score{
			{CalculatedData: map[string]float64{"rating": 10}},
			{CalculatedData: map[string]float64{"rating": 20}},
			{CalculatedData: map[string]float64{"rating": 30}},
		}

		Convey("Then the aggregate is the mean plus the peak", func() {
			out := rating.SessionCalculatedData(scores)
			So(out["avgRating"], ShouldEqual, 20)
			So(out["peakRating"], ShouldEqual, 30)
		})

		Convey("Then no members yield an empty map", func() {
			So(rating.SessionCalculatedData(nil), ShouldBeEmpty)
		})
	})
}

// seedPBs stores n primary PBs with descending rating figures.
func seedPBs(ctx context.Context, store repository.Store, userID int, game model.Game, pt model.Playtype, n int) {
	for i := 0; i < n; i++ {
		_ = store.UpsertPB(ctx, &model.PB{
			UserID:    userID,
			ChartID:   "chart-" + strconv.Itoa(i),
			Game:      game,
			Playtype:  pt,
			IsPrimary: true,
			CalculatedData: map[string]float64{
				"rating":     float64(100 - i),
				"lampRating": float64(50 - i),
				"VF4":        float64(300 - i),
				"VF5":        float64(20 - i),
			},
		})
	}
}

func TestRollup(t *testing.T) {
	Convey("Given a roller over stored personal bests", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore(ctx)
		r := rating.NewRoller(store)

		Convey("When fewer than 20 PBs exist", func() {
			seedPBs(ctx, store, 1, model.GameIIDX, model.PlaytypeSP, 5)

			out, err := r.DefaultRollup(ctx, 1, model.GameIIDX, model.PlaytypeSP)
			So(err, ShouldBeNil)
			// mean of 100..96
			So(out["rating"], ShouldEqual, 98)
			So(out["lampRating"], ShouldEqual, 48)
		})

		Convey("When more than 20 PBs exist", func() {
			seedPBs(ctx, store, 1, model.GameIIDX, model.PlaytypeSP, 30)

			out, err := r.DefaultRollup(ctx, 1, model.GameIIDX, model.PlaytypeSP)
			So(err, ShouldBeNil)
			// mean of the best 20: 100..81
			So(out["rating"], ShouldEqual, 90.5)
		})

		Convey("When non-primary PBs are present", func() {
			seedPBs(ctx, store, 1, model.GameIIDX, model.PlaytypeSP, 2)
			_ = store.UpsertPB(ctx, &model.PB{
				UserID: 1, ChartID: "secondary", Game: model.GameIIDX,
				Playtype: model.PlaytypeSP, IsPrimary: false,
				CalculatedData: map[string]float64{"rating": 1000},
			})

			out, err := r.DefaultRollup(ctx, 1, model.GameIIDX, model.PlaytypeSP)
			So(err, ShouldBeNil)
			So(out["rating"], ShouldEqual, 99.5)
		})

		Convey("When running the custom rollup for sdvx", func() {
			seedPBs(ctx, store, 1, model.GameSDVX, model.PlaytypeSingle, 3)

			out, err := r.CustomRollup(ctx, 1, model.GameSDVX, model.PlaytypeSingle)
			So(err, ShouldBeNil)
			// sum of best 20 (only 3 exist)
			So(out["VF4"], ShouldEqual, 300+299+298)
			So(out["VF5"], ShouldEqual, 20+19+18)
		})

		Convey("When the combination has no custom rule", func() {
			seedPBs(ctx, store, 1, model.GameMuseca, model.PlaytypeSingle, 3)

			out, err := r.CustomRollup(ctx, 1, model.GameMuseca, model.PlaytypeSingle)
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})

		Convey("When recalculating twice with no new PBs", func() {
			seedPBs(ctx, store, 1, model.GameSDVX, model.PlaytypeSingle, 10)

			first, err := r.Recalculate(ctx, 1, model.GameSDVX, model.PlaytypeSingle)
			So(err, ShouldBeNil)
			second, err := r.Recalculate(ctx, 1, model.GameSDVX, model.PlaytypeSingle)
			So(err, ShouldBeNil)
			So(second, ShouldResemble, first)
		})

		Convey("When the user has no PBs at all", func() {
			out, err := r.Recalculate(ctx, 99, model.GameIIDX, model.PlaytypeSP)
			So(err, ShouldBeNil)
			So(out["rating"], ShouldEqual, 0)
			So(out["lampRating"], ShouldEqual, 0)
		})
	})
}
