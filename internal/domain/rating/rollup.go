package rating

import (
	"context"

	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
)

// defaultBestCount is how many top personal bests feed the default rollups.
const defaultBestCount = 20

// aggregatorKind selects how a custom rollup folds a user's personal bests.
type aggregatorKind int

const (
	aggSumAll aggregatorKind = iota
	aggSumBestN
	aggMeanBestN
)

// customRule derives one profile figure from a per-score metric.
type customRule struct {
	metric string
	kind   aggregatorKind
	n      int
}

// customRules maps (game, playtype) to its title-specific profile figures.
// Combinations without an entry get only the default rollups.
var customRules = map[model.Game]map[model.Playtype][]customRule{
	model.GameIIDX: {
		model.PlaytypeSP: {{metric: MetricBPI, kind: aggMeanBestN, n: 20}},
		model.PlaytypeDP: {{metric: MetricBPI, kind: aggMeanBestN, n: 20}},
	},
	model.GameSDVX: {
		model.PlaytypeSingle: {
			{metric: MetricVF4, kind: aggSumBestN, n: 20},
			{metric: MetricVF5, kind: aggSumBestN, n: 50},
		},
	},
	model.GameUSC: {
		model.PlaytypeSingle: {
			{metric: MetricVF4, kind: aggSumBestN, n: 20},
			{metric: MetricVF5, kind: aggSumBestN, n: 50},
		},
	},
	model.GameDDR: {
		model.PlaytypeSP: {{metric: MetricMFCP, kind: aggSumAll}},
		model.PlaytypeDP: {{metric: MetricMFCP, kind: aggSumAll}},
	},
}

// Roller recomputes a user's profile rating figures from their personal
// bests. Every query reads only primary PBs with a positive metric value, so
// recomputation is idempotent until new PBs land.
type Roller struct {
	store repository.Store
	log   logger.Logger
}

// RollerOption applies a configuration option to the Roller.
type RollerOption func(*Roller)

// WithRollerLogger sets a custom logger for the roller.
func WithRollerLogger(log logger.Logger) RollerOption {
	return func(r *Roller) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRoller creates a Roller reading personal bests from the given store.
func NewRoller(store repository.Store, opts ...RollerOption) *Roller {
	r := &Roller{
		store: store,
		log:   logger.Get().Named("rating"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Recalculate recomputes every profile figure for one (user, game,
// playtype): the default rollups plus the title's custom figures.
func (r *Roller) Recalculate(ctx context.Context, userID int, game model.Game, pt model.Playtype) (map[string]float64, error) {
	out, err := r.DefaultRollup(ctx, userID, game, pt)
	if err != nil {
		return nil, err
	}

	custom, err := r.CustomRollup(ctx, userID, game, pt)
	if err != nil {
		return nil, err
	}
	for k, v := range custom {
		out[k] = v
	}

	return out, nil
}

// DefaultRollup computes the mean of the user's best 20 primary personal
// bests, independently for the score-rating and lamp-rating views.
func (r *Roller) DefaultRollup(ctx context.Context, userID int, game model.Game, pt model.Playtype) (map[string]float64, error) {
	out := map[string]float64{}

	for _, metric := range []string{MetricRating, MetricLampRating} {
		v, err := r.fold(ctx, userID, game, pt, customRule{metric: metric, kind: aggMeanBestN, n: defaultBestCount})
		if err != nil {
			return nil, err
		}
		out[metric] = v
	}

	return out, nil
}

// CustomRollup computes the title-specific profile figures. A (game,
// playtype) combination with no configured rules yields an empty map, not an
// error.
func (r *Roller) CustomRollup(ctx context.Context, userID int, game model.Game, pt model.Playtype) (map[string]float64, error) {
	out := map[string]float64{}

	for _, rule := range customRules[game][pt] {
		v, err := r.fold(ctx, userID, game, pt, rule)
		if err != nil {
			return nil, err
		}
		out[rule.metric] = v
	}

	return out, nil
}

// fold queries the matching personal bests and applies the rule's
// aggregator. No matching PBs folds to zero.
func (r *Roller) fold(ctx context.Context, userID int, game model.Game, pt model.Playtype, rule customRule) (float64, error) {
	limit := rule.n
	if rule.kind == aggSumAll {
		limit = 0
	}

	pbs, err := r.store.FindBestPBs(ctx, repository.PBQuery{
		UserID:   userID,
		Game:     game,
		Playtype: pt,
		Metric:   rule.metric,
		Limit:    limit,
	})
	if err != nil {
		return 0, err
	}
	if len(pbs) == 0 {
		return 0, nil
	}

	var sum float64
	for _, pb := range pbs {
		sum += pb.CalculatedData[rule.metric]
	}

	if rule.kind == aggMeanBestN {
		return sum / float64(len(pbs)), nil
	}
	return sum, nil
}
