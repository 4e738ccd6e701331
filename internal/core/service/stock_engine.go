package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/observability"
	"github.com/GokhanAsilturk/microservice-restaurant/internal/port"
)

const (
	reasonNotFound = "item not found"

	compensationAttempts = 10
	compensationTimeout  = 5 * time.Second
)

// StockEngine evaluates and commits stock batches against an ItemRepository.
// It keeps no state between calls; the repository's compare-and-set is the only
// serialization point.
type StockEngine struct {
	items  port.ItemRepository
	tracer trace.Tracer
}

func NewStockEngine(items port.ItemRepository) *StockEngine {
	return &StockEngine{
		items:  items,
		tracer: otel.Tracer("github.com/GokhanAsilturk/microservice-restaurant/stock-engine"),
	}
}

type plannedWrite struct {
	itemID   int64
	expected int
	next     int
	quantity int
}

// Evaluate checks every line against current quantities without writing.
// The first failing line ends the evaluation.
func (e *StockEngine) Evaluate(ctx context.Context, batch domain.StockBatch) (domain.StockOutcome, error) {
	if err := batch.Validate(); err != nil {
		return domain.StockOutcome{}, err
	}

	ctx, span := e.tracer.Start(ctx, "StockEngine.Evaluate", trace.WithAttributes(
		attribute.Int("stock.lines", len(batch.Lines)),
	))
	defer span.End()

	_, outcome, err := e.evaluate(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.StockOutcome{}, err
	}

	span.SetAttributes(attribute.Bool("stock.ok", outcome.OK))
	observability.StockBatches.WithLabelValues("evaluate", string(outcome.State)).Inc()
	return outcome, nil
}

// Commit evaluates the batch and then decrements every line with
// compare-and-set. A conflict on any line reverts the lines already written
// and reports ErrConcurrentModification; the caller decides whether to retry.
func (e *StockEngine) Commit(ctx context.Context, batch domain.StockBatch) (domain.StockOutcome, error) {
	if err := batch.Validate(); err != nil {
		return domain.StockOutcome{}, err
	}

	ctx, span := e.tracer.Start(ctx, "StockEngine.Commit", trace.WithAttributes(
		attribute.Int("stock.lines", len(batch.Lines)),
	))
	defer span.End()

	outcome, err := e.commit(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.StockOutcome{}, err
	}

	span.SetAttributes(
		attribute.Bool("stock.ok", outcome.OK),
		attribute.String("stock.state", string(outcome.State)),
	)
	observability.StockBatches.WithLabelValues("commit", string(outcome.State)).Inc()
	return outcome, nil
}

func (e *StockEngine) commit(ctx context.Context, batch domain.StockBatch) (domain.StockOutcome, error) {
	plan, outcome, err := e.evaluate(ctx, batch)
	if err != nil {
		return domain.StockOutcome{}, err
	}
	if !outcome.OK {
		log.Info().Int64("item_id", *outcome.FailingItemID).Str("reason", outcome.Reason).Msg("stock commit rejected")
		return outcome, nil
	}

	applied := make([]plannedWrite, 0, len(plan))
	for _, w := range plan {
		ok, err := e.items.CompareAndSetQuantity(ctx, w.itemID, w.expected, w.next)
		if err == nil && ok {
			applied = append(applied, w)
			continue
		}

		if rbErr := e.compensate(ctx, applied); rbErr != nil {
			return domain.StockOutcome{}, rbErr
		}
		if err != nil {
			return domain.StockOutcome{}, pkgerrors.Wrapf(err, "apply item %d", w.itemID)
		}

		log.Info().Int64("item_id", w.itemID).Int("rolled_back", len(applied)).Msg("stock commit rolled back")
		return domain.Failure(domain.BatchStateRolledBack, w.itemID, domain.ErrConcurrentModification.Error(), domain.ErrConcurrentModification), nil
	}

	log.Info().Int("lines", len(batch.Lines)).Msg("stock commit applied")
	return domain.Success(domain.BatchStateCommitted), nil
}

// evaluate walks the lines in order. Repeated item ids are checked against
// the quantity left by the earlier lines of the same batch.
func (e *StockEngine) evaluate(ctx context.Context, batch domain.StockBatch) ([]plannedWrite, domain.StockOutcome, error) {
	remaining := make(map[int64]int, len(batch.Lines))
	names := make(map[int64]string, len(batch.Lines))
	plan := make([]plannedWrite, 0, len(batch.Lines))

	for _, line := range batch.Lines {
		available, seen := remaining[line.ItemID]
		if !seen {
			item, err := e.items.Get(ctx, line.ItemID)
			if errors.Is(err, domain.ErrNotFound) {
				log.Warn().Int64("item_id", line.ItemID).Msg("stock check: item not found")
				return nil, domain.Failure(domain.BatchStateRejected, line.ItemID, reasonNotFound, domain.ErrNotFound), nil
			}
			if err != nil {
				return nil, domain.StockOutcome{}, pkgerrors.Wrapf(err, "read item %d", line.ItemID)
			}
			available = item.Quantity
			names[line.ItemID] = item.Name
		}

		log.Debug().
			Int64("item_id", line.ItemID).
			Int("requested", line.Quantity).
			Int("available", available).
			Msg("stock check")

		if available < line.Quantity {
			return nil, domain.Failure(domain.BatchStateRejected, line.ItemID,
				insufficientReason(names[line.ItemID], line.ItemID, line.Quantity, available),
				domain.ErrInsufficientStock), nil
		}

		if line.Quantity > 0 {
			plan = append(plan, plannedWrite{
				itemID:   line.ItemID,
				expected: available,
				next:     available - line.Quantity,
				quantity: line.Quantity,
			})
		}
		remaining[line.ItemID] = available - line.Quantity
	}

	return plan, domain.Success(domain.BatchStateEvaluating), nil
}

// compensate restores already applied decrements in reverse order. It runs
// detached from the caller's cancellation so a timed out request still gets
// rolled back.
func (e *StockEngine) compensate(ctx context.Context, applied []plannedWrite) error {
	if len(applied) == 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var failed []int64
	for i := len(applied) - 1; i >= 0; i-- {
		w := applied[i]
		if err := e.restore(cctx, w.itemID, w.quantity); err != nil {
			log.Error().Err(err).Int64("item_id", w.itemID).Int("quantity", w.quantity).Msg("CRITICAL compensation failed")
			observability.StockCompensations.WithLabelValues("failed").Inc()
			failed = append(failed, w.itemID)
			continue
		}
		observability.StockCompensations.WithLabelValues("applied").Inc()
	}

	if len(failed) > 0 {
		return pkgerrors.Wrapf(domain.ErrStorageUnavailable, "compensation incomplete for items %v", failed)
	}
	return nil
}

func (e *StockEngine) restore(ctx context.Context, itemID int64, quantity int) error {
	for attempt := 0; attempt < compensationAttempts; attempt++ {
		item, err := e.items.Get(ctx, itemID)
		if err != nil {
			return err
		}

		ok, err := e.items.CompareAndSetQuantity(ctx, itemID, item.Quantity, item.Quantity+quantity)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return domain.ErrConcurrentModification
}

// AddStock increases the quantity of one item. A concurrent write between
// read and compare-and-set yields ErrConcurrentModification.
func (e *StockEngine) AddStock(ctx context.Context, id int64, quantity int) (*domain.Item, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be greater than 0")
	}

	item, err := e.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := item.WithQuantity(item.Quantity + quantity)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "add %d to item %d holding %d", quantity, id, item.Quantity)
	}

	if err := e.swap(ctx, *item, updated); err != nil {
		return nil, err
	}
	observability.StockBatches.WithLabelValues("add", string(domain.BatchStateCommitted)).Inc()
	return &updated, nil
}

// ReduceStock is the single-item form of Commit.
func (e *StockEngine) ReduceStock(ctx context.Context, id int64, quantity int) (*domain.Item, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be greater than 0")
	}

	item, err := e.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := item.WithQuantity(item.Quantity - quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(err, insufficientReason(item.Name, id, quantity, item.Quantity))
	}

	if err := e.swap(ctx, *item, updated); err != nil {
		return nil, err
	}
	observability.StockBatches.WithLabelValues("reduce", string(domain.BatchStateCommitted)).Inc()
	return &updated, nil
}

func (e *StockEngine) swap(ctx context.Context, current, updated domain.Item) error {
	ok, err := e.items.CompareAndSetQuantity(ctx, current.ID, current.Quantity, updated.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConcurrentModification
	}
	return nil
}

func insufficientReason(name string, id int64, requested, available int) string {
	return fmt.Sprintf("insufficient stock for %q (item %d): requested %d, available %d", name, id, requested, available)
}
