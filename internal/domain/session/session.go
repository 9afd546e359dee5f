// Package session clusters a user's newly-imported scores into temporal play
// sessions. A session is the maximal run of timestamped plays on one
// game/playtype where no two consecutive plays are further apart than the
// inactivity gap.
package session

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/internal/domain/rating"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
	"github.com/hibiki-gg/scoretrack/pkg/metrics"
)

// InactivityGap is the largest time between two consecutive plays that still
// counts as the same session. It doubles as the margin for matching a score
// group against existing nearby sessions.
const InactivityGap = int64(2 * time.Hour / time.Millisecond)

// Clusterer groups hydrated scores into sessions and writes the results.
type Clusterer struct {
	store repository.Store
	log   logger.Logger
	now   func() int64
	locks *keyedMutex
}

// Option applies a configuration option to the Clusterer.
type Option func(*Clusterer)

// WithLogger sets a custom logger for the clusterer.
func WithLogger(log logger.Logger) Option {
	return func(cl *Clusterer) {
		if log != nil {
			cl.log = log
		}
	}
}

// WithClock overrides the insertion-time source, for tests.
func WithClock(now func() int64) Option {
	return func(cl *Clusterer) {
		if now != nil {
			cl.now = now
		}
	}
}

// New creates a Clusterer writing sessions to the given store.
func New(store repository.Store, opts ...Option) *Clusterer {
	cl := &Clusterer{
		store: store,
		log:   logger.Get().Named("session"),
		now:   func() int64 { return time.Now().UnixMilli() },
		locks: newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(cl)
	}

	return cl
}

// Cluster runs session derivation for one user's batch of newly-hydrated
// scores on a single game/playtype. Scores without a timestamp cannot be
// clustered and are dropped. Groups are processed strictly in order under a
// per-(user, game, playtype) lock, so two imports for the same user never
// race on the same session document.
func (cl *Clusterer) Cluster(ctx context.Context, userID int, game model.Game, pt model.Playtype, importType model.ImportType, scores []model.Score) ([]model.SessionOutcome, error) {
	timestamped := make([]model.Score, 0, len(scores))
	for _, sc := range scores {
		if sc.TimeAchieved == nil {
			cl.log.Verbose(ctx, "dropping timestampless score from session clustering",
				logger.String("scoreID", sc.ScoreID),
			)
			continue
		}
		timestamped = append(timestamped, sc)
	}
	if len(timestamped) == 0 {
		return nil, nil
	}

	sort.Slice(timestamped, func(i, j int) bool {
		return *timestamped[i].TimeAchieved < *timestamped[j].TimeAchieved
	})

	groups := partition(timestamped)

	key := string(game) + ":" + string(pt) + ":" + strconv.Itoa(userID)
	cl.locks.lock(key)
	defer cl.locks.unlock(key)

	outcomes := make([]model.SessionOutcome, 0, len(groups))
	for _, group := range groups {
		outcome, err := cl.clusterGroup(ctx, userID, game, pt, importType, group)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// partition splits sorted scores into contiguous groups: a new group starts
// whenever the gap since the immediate predecessor exceeds the inactivity
// threshold. Single left-to-right scan.
func partition(sorted []model.Score) [][]model.Score {
	var groups [][]model.Score

	start := 0
	for i := 1; i < len(sorted); i++ {
		if *sorted[i].TimeAchieved-*sorted[i-1].TimeAchieved > InactivityGap {
			groups = append(groups, sorted[start:i])
			start = i
		}
	}
	groups = append(groups, sorted[start:])

	return groups
}

// clusterGroup merges one score group into a nearby existing session or
// creates a new one. Runs under the per-key lock; the nearby session is
// re-read through the store immediately before the write.
func (cl *Clusterer) clusterGroup(ctx context.Context, userID int, game model.Game, pt model.Playtype, importType model.ImportType, group []model.Score) (model.SessionOutcome, error) {
	info, err := cl.scoreInfo(ctx, userID, group)
	if err != nil {
		return model.SessionOutcome{}, err
	}

	start := *group[0].TimeAchieved
	end := *group[len(group)-1].TimeAchieved

	existing, err := cl.store.FindNearbySession(ctx, userID, game, pt, start, end, InactivityGap)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return model.SessionOutcome{}, err
		}
		return cl.createSession(ctx, userID, game, pt, importType, info, start, end, group)
	}

	return cl.appendToSession(ctx, existing.SessionID, info, start, end, group)
}

// scoreInfo builds the per-score member references, with deltas against the
// user's then-current primary best on each chart.
func (cl *Clusterer) scoreInfo(ctx context.Context, userID int, group []model.Score) ([]model.SessionScoreInfo, error) {
	chartIDs := make([]string, 0, len(group))
	seen := make(map[string]struct{}, len(group))
	for _, sc := range group {
		if _, ok := seen[sc.ChartID]; ok {
			continue
		}
		seen[sc.ChartID] = struct{}{}
		chartIDs = append(chartIDs, sc.ChartID)
	}

	pbs, err := cl.store.FindScorePBs(ctx, userID, chartIDs)
	if err != nil {
		return nil, err
	}

	info := make([]model.SessionScoreInfo, 0, len(group))
	for _, sc := range group {
		pb, ok := pbs[sc.ChartID]
		if !ok {
			info = append(info, model.SessionScoreInfo{
				ScoreID:    sc.ScoreID,
				IsNewScore: true,
			})
			continue
		}

		info = append(info, model.SessionScoreInfo{
			ScoreID:      sc.ScoreID,
			IsNewScore:   false,
			GradeDelta:   sc.ScoreData.GradeIndex - pb.ScoreData.GradeIndex,
			LampDelta:    sc.ScoreData.LampIndex - pb.ScoreData.LampIndex,
			PercentDelta: sc.ScoreData.Percent - pb.ScoreData.Percent,
			ScoreDelta:   sc.ScoreData.Score - pb.ScoreData.Score,
		})
	}

	return info, nil
}

func (cl *Clusterer) createSession(ctx context.Context, userID int, game model.Game, pt model.Playtype, importType model.ImportType, info []model.SessionScoreInfo, start, end int64, group []model.Score) (model.SessionOutcome, error) {
	sess := &model.Session{
		SessionID:      newSessionID(),
		UserID:         userID,
		Game:           game,
		Playtype:       pt,
		ImportType:     importType,
		Name:           newSessionName(),
		ScoreInfo:      info,
		TimeInserted:   cl.now(),
		TimeStarted:    start,
		TimeEnded:      end,
		CalculatedData: rating.SessionCalculatedData(group),
	}

	if err := cl.store.InsertSession(ctx, sess); err != nil {
		return model.SessionOutcome{}, err
	}

	metrics.RecordSessionCreated()
	cl.log.Info(ctx, "created session",
		logger.String("sessionID", sess.SessionID),
		logger.Int("userID", userID),
		logger.String("game", string(game)),
		logger.Int("scores", len(group)),
	)

	return model.SessionOutcome{SessionID: sess.SessionID, Type: model.SessionCreated}, nil
}

func (cl *Clusterer) appendToSession(ctx context.Context, sessionID string, info []model.SessionScoreInfo, start, end int64, group []model.Score) (model.SessionOutcome, error) {
	// Re-read under the lock; the nearby query's snapshot may be stale.
	sess, err := cl.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.SessionOutcome{}, err
	}

	sess.ScoreInfo = append(sess.ScoreInfo, info...)
	if start < sess.TimeStarted {
		sess.TimeStarted = start
	}
	if end > sess.TimeEnded {
		sess.TimeEnded = end
	}

	calc, err := cl.recalculate(ctx, sess, group)
	if err != nil {
		return model.SessionOutcome{}, err
	}
	sess.CalculatedData = calc

	if err := cl.store.UpdateSession(ctx, sess); err != nil {
		return model.SessionOutcome{}, err
	}

	metrics.RecordSessionAppended()
	cl.log.Info(ctx, "appended to session",
		logger.String("sessionID", sess.SessionID),
		logger.Int("scores", len(group)),
	)

	return model.SessionOutcome{SessionID: sess.SessionID, Type: model.SessionAppended}, nil
}

// recalculate rebuilds the session's calculated data over all member scores,
// old and new. Members that can no longer be loaded are skipped rather than
// failing the append.
func (cl *Clusterer) recalculate(ctx context.Context, sess *model.Session, group []model.Score) (map[string]float64, error) {
	ids := make([]string, 0, len(sess.ScoreInfo))
	inGroup := make(map[string]struct{}, len(group))
	for _, sc := range group {
		inGroup[sc.ScoreID] = struct{}{}
	}
	for _, si := range sess.ScoreInfo {
		if _, ok := inGroup[si.ScoreID]; ok {
			continue
		}
		ids = append(ids, si.ScoreID)
	}

	members, err := cl.store.GetScoresByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	members = append(members, group...)

	return rating.SessionCalculatedData(members), nil
}
