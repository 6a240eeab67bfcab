package engine

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"swapledger/internal/model"
)

const (
	batchModeAtomic     = "atomic"
	batchModeBestEffort = "best_effort"
)

// BatchError reports the operation that aborted an atomic batch.
type BatchError struct {
	Index int
	Kind  model.BatchOpKind
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch operation %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Is matches ErrBatchFailed in addition to the wrapped cause.
func (e *BatchError) Is(target error) bool {
	return target == model.ErrBatchFailed
}

func (e *Engine) validateBatch(ops []model.BatchOperation) error {
	if len(ops) == 0 {
		return errorsmod.Wrap(model.ErrInvalidAmount, "empty batch")
	}
	if len(ops) > e.cfg.MaxBatchSize {
		return errorsmod.Wrapf(model.ErrInvalidAmount, "batch of %d exceeds %d operations", len(ops), e.cfg.MaxBatchSize)
	}
	return nil
}

// ExecuteBatchAtomic runs ops on one working copy. The first failure discards
// every change and is returned as a *BatchError.
func (e *Engine) ExecuteBatchAtomic(ctx context.Context, caller model.Identity, ops []model.BatchOperation) (model.BatchResult, error) {
	if err := e.validateBatch(ops); err != nil {
		return model.BatchResult{}, err
	}
	e.metrics.ObserveBatch(batchModeAtomic, len(ops))

	result := model.BatchResult{ID: uuid.NewString()}
	err := e.run(ctx, "batch_atomic", func(t *txn) error {
		if err := t.requireTrading(caller); err != nil {
			return err
		}
		result.Outcomes = make([]model.OpOutcome, 0, len(ops))
		for i, op := range ops {
			outcome, err := e.execOp(t, caller, op)
			if err != nil {
				return &BatchError{Index: i, Kind: op.Kind, Err: err}
			}
			outcome.Index = i
			result.Outcomes = append(result.Outcomes, outcome)
		}
		result.OperationsExecuted = len(ops)
		t.emit(model.Event{
			Kind:     model.EventBatchExecuted,
			Identity: caller,
			Detail:   fmt.Sprintf("id=%s mode=%s executed=%d failed=0", result.ID, batchModeAtomic, len(ops)),
		})
		return nil
	})
	if err != nil {
		return model.BatchResult{}, err
	}
	return result, nil
}

// ExecuteBatchBestEffort commits each op on its own. Failed ops are recorded
// in the result and skipped.
func (e *Engine) ExecuteBatchBestEffort(ctx context.Context, caller model.Identity, ops []model.BatchOperation) (model.BatchResult, error) {
	if err := e.validateBatch(ops); err != nil {
		return model.BatchResult{}, err
	}
	e.metrics.ObserveBatch(batchModeBestEffort, len(ops))

	e.mu.Lock()
	defer e.mu.Unlock()

	current := &txn{st: e.state}
	if err := current.requireTrading(caller); err != nil {
		e.observe("batch_best_effort", err)
		return model.BatchResult{}, err
	}

	result := model.BatchResult{ID: uuid.NewString(), Outcomes: make([]model.OpOutcome, 0, len(ops))}
	var events []model.Event
	var now uint64
	for i, op := range ops {
		t := e.begin()
		now = t.now
		outcome, err := e.execOp(t, caller, op)
		if err == nil {
			err = e.commit(ctx, t)
		}
		e.observe("batch_op_"+string(op.Kind), err)
		if err != nil {
			result.Outcomes = append(result.Outcomes, model.OpOutcome{Index: i, Kind: op.Kind, Error: err.Error()})
			result.OperationsFailed++
			continue
		}
		outcome.Index = i
		result.Outcomes = append(result.Outcomes, outcome)
		result.OperationsExecuted++
		events = append(events, t.events...)
	}

	events = append(events, model.Event{
		ID:        uuid.NewString(),
		Kind:      model.EventBatchExecuted,
		Identity:  caller,
		Detail:    fmt.Sprintf("id=%s mode=%s executed=%d failed=%d", result.ID, batchModeBestEffort, result.OperationsExecuted, result.OperationsFailed),
		Timestamp: now,
	})
	e.logger.Debug("best effort batch",
		zap.String("id", result.ID),
		zap.Int("executed", result.OperationsExecuted),
		zap.Int("failed", result.OperationsFailed),
	)
	e.publish(ctx, events)
	return result, nil
}

// execOp applies one batch operation to t.
func (e *Engine) execOp(t *txn, caller model.Identity, op model.BatchOperation) (model.OpOutcome, error) {
	outcome := model.OpOutcome{Kind: op.Kind, Success: true}
	switch op.Kind {
	case model.BatchSwap:
		res, err := e.swap(t, caller, op.TokenIn, op.TokenOut, op.AmountIn, op.MinOut)
		if err != nil {
			return model.OpOutcome{}, err
		}
		outcome.AmountOut = res.AmountOut
	case model.BatchAddLiquidity:
		minted, err := e.addLiquidity(t, caller, op.PoolID, op.AmountA, op.AmountB)
		if err != nil {
			return model.OpOutcome{}, err
		}
		outcome.LPTokens = minted
	case model.BatchRemoveLiquidity:
		amountA, amountB, err := e.removeLiquidity(t, caller, op.PoolID, op.LPTokens)
		if err != nil {
			return model.OpOutcome{}, err
		}
		outcome.AmountA, outcome.AmountB = amountA, amountB
	default:
		return model.OpOutcome{}, errorsmod.Wrapf(model.ErrInvalidAmount, "unknown batch operation %q", op.Kind)
	}
	return outcome, nil
}
