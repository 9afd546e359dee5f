package repository_test

import (
	"context"
	"strconv"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// backends runs the same suite against every Store implementation.
func backends(t *testing.T, name string, suite func(store repository.Store)) {
	ctx := context.Background()

	Convey(name+" on the in-memory store", t, func() {
		store := repository.NewMemStore(ctx)
		defer store.Close()
		suite(store)
	})

	Convey(name+" on the badger store", t, func() {
		store, err := repository.NewBadgerStore(ctx, "")
		So(err, ShouldBeNil)
		defer store.Close()
		suite(store)
	})
}

func seedCatalog(ctx context.Context, store repository.Store) {
	_ = store.UpsertSong(ctx, &model.Song{
		ID: 1, Game: model.GameIIDX, Title: "5.1.1.",
		AltTitles: []string{"five one one"},
	})
	_ = store.UpsertChart(ctx, &model.Chart{
		ChartID: "iidx-1-sp-a", SongID: 1, Game: model.GameIIDX,
		Playtype: model.PlaytypeSP, Difficulty: "ANOTHER",
		LevelNum: 10, Notecount: 1000, IsPrimary: true,
		Versions: []string{"28", "29"},
	})
	_ = store.UpsertChart(ctx, &model.Chart{
		ChartID: "bms-2-sp", SongID: 2, Game: model.GameBMS,
		Playtype: model.PlaytypeSP, Difficulty: "CHART",
		Hash: "deadbeef", IsPrimary: true,
	})
	_ = store.UpsertChart(ctx, &model.Chart{
		ChartID: "sdvx-3-adv", SongID: 3, Game: model.GameSDVX,
		Playtype: model.PlaytypeSingle, Difficulty: "ADV",
		InGameID: 300, Versions: []string{"6"}, IsPrimary: true,
	})
}

func TestCatalogLookups(t *testing.T) {
	backends(t, "Given a seeded catalog", func(store repository.Store) {
		ctx := context.Background()
		seedCatalog(ctx, store)

		Convey("When looking a song up by ID", func() {
			song, err := store.FindSongByID(ctx, model.GameIIDX, 1)
			So(err, ShouldBeNil)
			So(song.Title, ShouldEqual, "5.1.1.")

			_, err = store.FindSongByID(ctx, model.GameIIDX, 999)
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("When looking a song up by title", func() {
			song, err := store.FindSongByTitle(ctx, model.GameIIDX, "5.1.1.")
			So(err, ShouldBeNil)
			So(song.ID, ShouldEqual, 1)

			Convey("Then matching is case-insensitive and covers alt titles", func() {
				song, err := store.FindSongByTitle(ctx, model.GameIIDX, "FIVE ONE ONE")
				So(err, ShouldBeNil)
				So(song.ID, ShouldEqual, 1)
			})

			Convey("Then other games never match", func() {
				_, err := store.FindSongByTitle(ctx, model.GameSDVX, "5.1.1.")
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When resolving a chart by hash", func() {
			chart, err := store.FindChartByHash(ctx, model.GameBMS, "deadbeef")
			So(err, ShouldBeNil)
			So(chart.ChartID, ShouldEqual, "bms-2-sp")

			_, err = store.FindChartByHash(ctx, model.GameBMS, "cafebabe")
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("When resolving a chart by song, playtype and difficulty", func() {
			chart, err := store.FindChartBySongPTDF(ctx, model.GameIIDX, 1, model.PlaytypeSP, "ANOTHER")
			So(err, ShouldBeNil)
			So(chart.ChartID, ShouldEqual, "iidx-1-sp-a")

			_, err = store.FindChartBySongPTDF(ctx, model.GameIIDX, 1, model.PlaytypeDP, "ANOTHER")
			So(err, ShouldEqual, repository.ErrNotFound)

			Convey("Then the version-scoped lookup honors the version list", func() {
				chart, err := store.FindChartBySongPTDFVersion(ctx, model.GameIIDX, 1, model.PlaytypeSP, "ANOTHER", "29")
				So(err, ShouldBeNil)
				So(chart.ChartID, ShouldEqual, "iidx-1-sp-a")

				_, err = store.FindChartBySongPTDFVersion(ctx, model.GameIIDX, 1, model.PlaytypeSP, "ANOTHER", "12")
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When resolving a chart by in-game ID", func() {
			chart, err := store.FindChartByInGameID(ctx, model.GameSDVX, 300, "ADV", "6")
			So(err, ShouldBeNil)
			So(chart.ChartID, ShouldEqual, "sdvx-3-adv")

			_, err = store.FindChartByInGameID(ctx, model.GameSDVX, 300, "ADV", "5")
			So(err, ShouldEqual, repository.ErrNotFound)
		})
	})
}

func score(id, chartID string, userID int, percent float64, scorePB bool) *model.Score {
	return &model.Score{
		ScoreID:  id,
		UserID:   userID,
		ChartID:  chartID,
		Game:     model.GameIIDX,
		Playtype: model.PlaytypeSP,
		ScoreData: model.ScoreData{
			Percent: percent, Score: percent * 20, Grade: "A", GradeIndex: 5,
			Lamp: "CLEAR", LampIndex: 4,
		},
		IsScorePB: scorePB,
	}
}

func TestScores(t *testing.T) {
	backends(t, "Given the score collection", func(store repository.Store) {
		ctx := context.Background()

		Convey("When inserting a score", func() {
			So(store.InsertScore(ctx, score("R1", "c1", 1, 80, false)), ShouldBeNil)

			Convey("Then the same ID is rejected as a duplicate", func() {
				err := store.InsertScore(ctx, score("R1", "c1", 1, 80, false))
				So(err, ShouldEqual, repository.ErrDuplicate)
			})

			Convey("Then it can be fetched back by ID", func() {
				got, err := store.GetScoresByIDs(ctx, []string{"R1", "missing"})
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].ScoreID, ShouldEqual, "R1")
			})

			Convey("Then UpdateScore replaces its content", func() {
				updated := score("R1", "c1", 1, 80, true)
				updated.IsLampPB = true
				So(store.UpdateScore(ctx, updated), ShouldBeNil)

				got, err := store.GetScoresByIDs(ctx, []string{"R1"})
				So(err, ShouldBeNil)
				So(got[0].IsScorePB, ShouldBeTrue)
				So(got[0].IsLampPB, ShouldBeTrue)
			})

			Convey("Then UpdateScore on an unknown ID is an error", func() {
				err := store.UpdateScore(ctx, score("ghost", "c1", 1, 80, false))
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When querying score PBs across charts", func() {
			So(store.InsertScore(ctx, score("R1", "c1", 1, 80, true)), ShouldBeNil)
			So(store.InsertScore(ctx, score("R2", "c1", 1, 70, false)), ShouldBeNil)
			So(store.InsertScore(ctx, score("R3", "c2", 1, 60, true)), ShouldBeNil)
			So(store.InsertScore(ctx, score("R4", "c1", 2, 90, true)), ShouldBeNil)

			pbs, err := store.FindScorePBs(ctx, 1, []string{"c1", "c2", "c3"})
			So(err, ShouldBeNil)

			Convey("Then only the user's flagged scores come back, keyed by chart", func() {
				So(len(pbs), ShouldEqual, 2)
				So(pbs["c1"].ScoreID, ShouldEqual, "R1")
				So(pbs["c2"].ScoreID, ShouldEqual, "R3")
			})
		})
	})
}

func TestPBs(t *testing.T) {
	backends(t, "Given the personal-best collection", func(store repository.Store) {
		ctx := context.Background()

		pb := func(chartID string, rating float64, primary bool) *model.PB {
			return &model.PB{
				UserID: 1, ChartID: chartID, Game: model.GameIIDX,
				Playtype: model.PlaytypeSP, IsPrimary: primary,
				CalculatedData: map[string]float64{"rating": rating},
			}
		}

		Convey("When upserting the same chart twice", func() {
			So(store.UpsertPB(ctx, pb("c1", 10, true)), ShouldBeNil)
			So(store.UpsertPB(ctx, pb("c1", 20, true)), ShouldBeNil)

			out, err := store.FindBestPBs(ctx, repository.PBQuery{
				UserID: 1, Game: model.GameIIDX, Playtype: model.PlaytypeSP, Metric: "rating",
			})
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 1)
			So(out[0].CalculatedData["rating"], ShouldEqual, 20)
		})

		Convey("When querying best PBs", func() {
			for i := 0; i < 5; i++ {
				So(store.UpsertPB(ctx, pb("c"+strconv.Itoa(i), float64(10+i), true)), ShouldBeNil)
			}
			So(store.UpsertPB(ctx, pb("secondary", 1000, false)), ShouldBeNil)
			So(store.UpsertPB(ctx, pb("zero", 0, true)), ShouldBeNil)

			out, err := store.FindBestPBs(ctx, repository.PBQuery{
				UserID: 1, Game: model.GameIIDX, Playtype: model.PlaytypeSP,
				Metric: "rating", Limit: 3,
			})
			So(err, ShouldBeNil)

			Convey("Then results are primary-only, metric-positive, sorted and limited", func() {
				So(len(out), ShouldEqual, 3)
				So(out[0].CalculatedData["rating"], ShouldEqual, 14)
				So(out[1].CalculatedData["rating"], ShouldEqual, 13)
				So(out[2].CalculatedData["rating"], ShouldEqual, 12)
			})

			Convey("Then limit zero returns everything that qualifies", func() {
				all, err := store.FindBestPBs(ctx, repository.PBQuery{
					UserID: 1, Game: model.GameIIDX, Playtype: model.PlaytypeSP, Metric: "rating",
				})
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 5)
			})
		})
	})
}

func TestSessions(t *testing.T) {
	backends(t, "Given the session collection", func(store repository.Store) {
		ctx := context.Background()

		sess := func(id string, start, end int64) *model.Session {
			return &model.Session{
				SessionID: id, UserID: 1, Game: model.GameIIDX,
				Playtype: model.PlaytypeSP, Name: "n",
				TimeStarted: start, TimeEnded: end,
				ScoreInfo: []model.SessionScoreInfo{{ScoreID: "R-" + id, IsNewScore: true}},
			}
		}

		Convey("When inserting and fetching a session", func() {
			So(store.InsertSession(ctx, sess("Q1", 0, 100)), ShouldBeNil)

			got, err := store.GetSession(ctx, "Q1")
			So(err, ShouldBeNil)
			So(got.TimeEnded, ShouldEqual, 100)
			So(len(got.ScoreInfo), ShouldEqual, 1)

			Convey("Then inserting the same ID again is a duplicate", func() {
				So(store.InsertSession(ctx, sess("Q1", 0, 100)), ShouldEqual, repository.ErrDuplicate)
			})

			Convey("Then an unknown ID is not found", func() {
				_, err := store.GetSession(ctx, "Q404")
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("Then UpdateSession replaces the stored document", func() {
				got.TimeEnded = 500
				got.ScoreInfo = append(got.ScoreInfo, model.SessionScoreInfo{ScoreID: "R-extra", IsNewScore: true})
				So(store.UpdateSession(ctx, got), ShouldBeNil)

				again, err := store.GetSession(ctx, "Q1")
				So(err, ShouldBeNil)
				So(again.TimeEnded, ShouldEqual, 500)
				So(len(again.ScoreInfo), ShouldEqual, 2)
			})

			Convey("Then updating an unknown session is an error", func() {
				So(store.UpdateSession(ctx, sess("Q404", 0, 1)), ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When searching for nearby sessions", func() {
			So(store.InsertSession(ctx, sess("Qearly", 1000, 2000)), ShouldBeNil)
			So(store.InsertSession(ctx, sess("Qlate", 1500, 2000)), ShouldBeNil)

			Convey("Then a window within the margin matches", func() {
				got, err := store.FindNearbySession(ctx, 1, model.GameIIDX, model.PlaytypeSP, 2100, 2200, 500)
				So(err, ShouldBeNil)

				Convey("Then ties resolve to the earliest-starting session", func() {
					So(got.SessionID, ShouldEqual, "Qearly")
				})
			})

			Convey("Then a window beyond the margin does not match", func() {
				_, err := store.FindNearbySession(ctx, 1, model.GameIIDX, model.PlaytypeSP, 10_000, 11_000, 500)
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("Then other users never match", func() {
				_, err := store.FindNearbySession(ctx, 2, model.GameIIDX, model.PlaytypeSP, 2100, 2200, 500)
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}
