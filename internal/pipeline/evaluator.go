package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/store"
)

// Collector gathers the sub-scores of a request.
type Collector interface {
	Collect(ctx context.Context, req *model.LoanRequest) (model.ScoreReport, error)
}

// Decider turns a report into a decision.
type Decider interface {
	Decide(ctx context.Context, report model.ScoreReport, requested int64) (model.Decision, error)
}

// Evaluator runs one loan request end to end: validate, collect, decide,
// persist.
type Evaluator struct {
	collector Collector
	decider   Decider
	store     store.Store
	metrics   *metrics.Recorder
	nowFunc   func() time.Time
}

// New creates an Evaluator. st and rec may be nil.
func New(c Collector, d Decider, st store.Store, rec *metrics.Recorder) *Evaluator {
	return &Evaluator{
		collector: c,
		decider:   d,
		store:     st,
		metrics:   rec,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate validates req and runs it through collection and decision.
//
// Invalid input returns a *model.ValidationError and no evaluation. Every
// other outcome returns the evaluation record: StatusDecided with a nil
// error, or StatusFailed / StatusInvalidDecision together with the cause.
// A failure is never recorded as a denial.
func (e *Evaluator) Evaluate(ctx context.Context, req *model.LoanRequest) (*model.Evaluation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("channel_id", req.ChannelID), zap.Int64("loan_requested", req.LoanAmount))
	start := e.nowFunc()
	log.Info("pipeline: evaluation started")

	ev := &model.Evaluation{
		ChannelID:     req.ChannelID,
		LoanRequested: req.LoanAmount,
		CreatedAt:     start,
	}

	cause := e.run(ctx, req, ev)
	if cause != nil {
		ev.Error = cause.Error()
		log.Warn("pipeline: evaluation not decided", zap.String("status", string(ev.Status)), zap.Error(cause))
	} else {
		log.Info("pipeline: evaluation decided",
			zap.Bool("approved", ev.Decision.Approved),
			zap.Int64("approved_amount", ev.Decision.ApprovedAmount),
			zap.Duration("took", e.nowFunc().Sub(start)),
		)
	}
	e.metrics.Evaluation(string(ev.Status))

	if e.store != nil {
		if err := e.store.SaveEvaluation(ctx, ev); err != nil {
			return ev, eris.Wrap(err, "pipeline: save evaluation")
		}
	}
	return ev, cause
}

func (e *Evaluator) run(ctx context.Context, req *model.LoanRequest, ev *model.Evaluation) error {
	report, err := e.collector.Collect(ctx, req)
	if err != nil {
		ev.Status = model.StatusFailed
		return err
	}
	ev.Report = &report

	d, err := e.decider.Decide(ctx, report, req.LoanAmount)
	if err != nil {
		ev.Status = statusFor(err)
		return err
	}

	ev.Status = model.StatusDecided
	ev.Decision = &d
	ev.SpendingLimit = d.SpendingLimit()
	return nil
}

func statusFor(err error) model.EvaluationStatus {
	if model.IsDecisionFormat(err) {
		return model.StatusInvalidDecision
	}
	return model.StatusFailed
}
