package rules

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

// Sweep fires every active scheduled rule whose next execution time has
// passed, each at most once per call. Each rule runs under its own bounded
// context; a slow or failing rule is logged and skipped so it cannot block
// the rest of the pass.
func (e *Engine) Sweep(ctx context.Context, ruleTimeout time.Duration) []Result {
	now := e.now()
	due, err := e.store.ListRules(ctx, store.RuleFilter{
		Trigger:    model.TriggerScheduled,
		ActiveOnly: true,
		DueBefore:  now,
	})
	if err != nil {
		e.log.Error("selecting due rules failed", zap.Error(err))
		return nil
	}

	var results []Result
	for _, r := range due {
		ruleCtx := ctx
		cancel := func() {}
		if ruleTimeout > 0 {
			ruleCtx, cancel = context.WithTimeout(ctx, ruleTimeout)
		}

		res, err := e.fire(ruleCtx, r, clampTransferAmount(r, r.Value))
		cancel()
		if err != nil {
			e.log.Error("scheduled rule failed", zap.String("rule_id", r.ID), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

// Sweeper periodically runs the engine's sweep until its context is
// cancelled. Stopping only prevents the next tick; an in-flight pass
// finishes on its own.
type Sweeper struct {
	engine      *Engine
	interval    time.Duration
	ruleTimeout time.Duration
	log         *zap.Logger
}

// NewSweeper creates a sweeper. A nil logger is replaced by a no-op.
func NewSweeper(engine *Engine, interval, ruleTimeout time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{engine: engine, interval: interval, ruleTimeout: ruleTimeout, log: log}
}

// Run blocks, sweeping once per interval, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			results := s.engine.Sweep(ctx, s.ruleTimeout)
			executed := 0
			for _, r := range results {
				if r.Executed {
					executed++
				}
			}
			if len(results) > 0 {
				s.log.Info("sweep finished",
					zap.Int("due", len(results)),
					zap.Int("executed", executed))
			}
		}
	}
}
