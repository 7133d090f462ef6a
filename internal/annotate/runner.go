package annotate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bloodgroupdb/leadctl/internal/lead"
)

// Patcher applies a partial update to one variant record. *lead.Client
// satisfies this; tests substitute a recorder.
type Patcher interface {
	PatchVariant(ctx context.Context, id int, fields map[string]any) error
}

// Runner drives one annotation pass: strictly sequential over the variant
// list, one external query in flight at a time, a full pacing interval
// between consecutive query attempts because failed requests still consume
// the service's rate budget.
type Runner struct {
	source  Source
	patcher Patcher
	policy  Policy
	dryRun  bool
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRunner creates a runner for one source. The pacing limiter is sized
// from the source's published interval; a zero interval disables pacing
// (used by tests).
func NewRunner(source Source, patcher Patcher, policy Policy) *Runner {
	return &Runner{
		source:  source,
		patcher: patcher,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Every(source.Interval()), 1),
		logger:  zap.NewNop(),
	}
}

// SetDryRun switches the runner to log intended updates without sending
// PATCH requests. Counters are unaffected: a dry run and a live run over
// the same data report identical tallies.
func (r *Runner) SetDryRun(dry bool) {
	r.dryRun = dry
}

// SetLogger sets the logger for progress and outcome messages.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Run processes every variant and returns the aggregated counters.
// Per-variant failures are logged and never abort the batch; the only
// errors returned are context cancellation.
func (r *Runner) Run(ctx context.Context, variants []lead.Variant) (Counters, error) {
	var counters Counters
	total := len(variants)

	for i := range variants {
		v := &variants[i]
		log := r.logger.With(
			zap.String("source", r.source.Name()),
			zap.Int("variant", v.ID),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, total)),
		)
		log.Info("processing variant")

		if reason, skip := r.policy.ShouldSkip(r.source, v); skip {
			log.Info("skipping", zap.String("reason", reason))
			counters.Skipped++
			continue
		}

		// Pace before the query so every attempt, including ones whose
		// outcome is not-found or an error, is a full interval after the
		// previous one. Skipped variants never reach this point.
		if err := r.limiter.Wait(ctx); err != nil {
			return counters, err
		}

		outcome := r.source.Query(ctx, v)
		r.apply(ctx, log, v, outcome, &counters)
	}

	return counters, nil
}

func (r *Runner) apply(ctx context.Context, log *zap.Logger, v *lead.Variant, outcome Outcome, counters *Counters) {
	switch outcome.Status {
	case StatusError:
		log.Error("lookup failed", zap.Error(outcome.Err))
	case StatusNotFound:
		log.Info("not found")
	}

	instr := r.policy.Decide(r.source, v, outcome)

	switch instr.Op {
	case OpSet:
		if r.dryRun {
			log.Info("dry run: would update", zap.Any("fields", instr.Set))
		} else if err := r.patcher.PatchVariant(ctx, v.ID, instr.Set); err != nil {
			log.Error("update failed", zap.Error(err))
			return
		} else {
			log.Info("updated", zap.Any("fields", instr.Set))
		}
		counters.Updated++

	case OpClear:
		counters.NotFound++
		if r.dryRun {
			log.Info("dry run: would clear", zap.Strings("fields", instr.Clear))
		} else if err := r.patcher.PatchVariant(ctx, v.ID, ClearPayload(instr.Clear)); err != nil {
			log.Error("clear failed", zap.Error(err))
			return
		} else {
			log.Info("cleared", zap.Strings("fields", instr.Clear))
		}
		counters.Cleared++

	case OpNone:
		counters.NotFound++
	}
}
