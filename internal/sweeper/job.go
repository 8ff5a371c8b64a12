package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/rail"
	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	"github.com/freightline/settlement-engine/pkg/logger"
	"github.com/freightline/settlement-engine/pkg/metrics"
	"github.com/freightline/settlement-engine/pkg/outbox"
)

const (
	jobName          = "delayed_settlement_sweep"
	defaultBatchSize = 100
	defaultClaimTTL  = 10 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// JobParams wires the sweeper's dependencies.
type JobParams struct {
	Tx          txRunner
	Settlements settlement.Repository
	Audit       audit.Repository
	Outbox      outboxPublisher
	Rails       *rail.Registry
	Provider    enums.RailProvider
	Metrics     *metrics.SweeperMetrics
	Logger      *logger.Logger
	BatchSize   int
	ClaimTTL    time.Duration
}

// Job promotes matured delayed settlements through the payment rail. Each
// row is claimed with a lease before any side effect, so any number of
// worker instances can run the job concurrently.
type Job struct {
	tx          txRunner
	settlements settlement.Repository
	audit       audit.Repository
	outbox      outboxPublisher
	rails       *rail.Registry
	provider    enums.RailProvider
	metrics     *metrics.SweeperMetrics
	logg        *logger.Logger
	batchSize   int
	claimTTL    time.Duration
	now         func() time.Time
}

// NewJob validates the wiring and returns the sweep job.
func NewJob(params JobParams) (*Job, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Settlements == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Rails == nil {
		return nil, fmt.Errorf("rail registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	provider := params.Provider
	if provider == "" {
		provider = enums.RailInternalLedger
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	claimTTL := params.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &Job{
		tx:          params.Tx,
		settlements: params.Settlements,
		audit:       params.Audit,
		outbox:      params.Outbox,
		rails:       params.Rails,
		provider:    provider,
		metrics:     params.Metrics,
		logg:        params.Logger,
		batchSize:   batchSize,
		claimTTL:    claimTTL,
		now:         time.Now,
	}, nil
}

// Name implements cron.Job.
func (j *Job) Name() string { return jobName }

// Run claims one batch of matured delayed settlements and promotes each
// through the rail. A failed row stays delayed under its lease and is
// retried on a later sweep; failures never stop the rest of the batch.
func (j *Job) Run(ctx context.Context) error {
	now := j.now().UTC()
	claimed, err := j.settlements.ClaimDelayedDue(ctx, now, j.claimTTL, j.batchSize)
	if err != nil {
		return fmt.Errorf("claim delayed settlements: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	var errs error
	promoted := 0
	for _, row := range claimed {
		if err := j.promote(ctx, row); err != nil {
			rowCtx := j.logg.WithMilestoneID(ctx, row.ID.String())
			j.logg.Error(rowCtx, "delayed settlement promotion failed", err)
			errs = multierr.Append(errs, fmt.Errorf("milestone %s: %w", row.ID, err))
			continue
		}
		promoted++
	}

	if j.metrics != nil && promoted > 0 {
		j.metrics.AddPromoted(jobName, promoted)
	}
	batchCtx := j.logg.WithFields(ctx, map[string]any{
		"claimed":  len(claimed),
		"promoted": promoted,
	})
	j.logg.Info(batchCtx, "delayed settlement sweep finished")
	return errs
}

func (j *Job) promote(ctx context.Context, row models.MilestoneSettlement) error {
	railImpl, err := j.rails.Resolve(j.provider)
	if err != nil {
		return err
	}
	result, err := railImpl.ProcessSettlement(ctx, rail.Request{
		MilestoneID: row.ID,
		Amount:      row.Amount,
		Currency:    row.Currency,
	})
	if err != nil || !result.Success {
		reason := "rail rejected settlement"
		if err != nil {
			reason = err.Error()
		}
		if recordErr := j.settlements.RecordFailure(ctx, row.ID, reason); recordErr != nil {
			err = multierr.Append(err, recordErr)
		}
		if err == nil {
			err = fmt.Errorf("%s", reason)
		}
		return err
	}

	return j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.settlements.WithTx(tx).MarkApproved(ctx, row.ID, result.Reference); err != nil {
			return err
		}
		if err := j.audit.WithTx(tx).Create(ctx, &models.AuditLogEntry{
			MilestoneID: row.ID,
			Action:      "approved",
			Reason:      "delayed release matured",
			TriggeredBy: enums.AuditActorSweeper,
		}); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementApproved,
			AggregateType: enums.AggregateMilestoneSettlement,
			AggregateID:   row.ID,
			Actor:         enums.AuditActorSweeper,
			Data: map[string]any{
				"milestone_id":       row.ID.String(),
				"payment_intent_id":  row.PaymentIntentID.String(),
				"amount":             row.Amount.String(),
				"provider_reference": result.Reference,
			},
			Version:    1,
			OccurredAt: j.now().UTC(),
		})
	})
}
