package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runCall executes one invocation under its own timeout: arguments are
// validated first, then the handler runs on its own goroutine while this
// one waits for a result, an error, or the timeout. The per-call timer and
// the batch deadline share the same context; context.Cause tells them
// apart.
func (d *Dispatcher) runCall(ctx context.Context, pc plannedCall, rec *Record, lane Lane) (Outcome, *CallError) {
	start := time.Now()
	logger := d.logger.With().
		Str("tool", pc.inv.Tool).
		Str("call_id", pc.inv.ID).
		Str("lane", string(lane)).
		Logger()

	rec.dispatch(pc.inv.ID)

	if pc.tool.ValidateArguments != nil {
		if err := pc.tool.ValidateArguments(pc.inv.Arguments); err != nil {
			duration := time.Since(start)
			logger.Error().Err(err).Dur("duration", duration).Msg("Argument validation failed")
			rec.finish(pc.inv.ID, StateFailed, duration, err.Error())
			d.observeCall(pc.inv.Tool, lane, "invalid_arguments", duration)

			return Outcome{}, &CallError{
				CallID:    pc.inv.ID,
				Tool:      pc.inv.Tool,
				Arguments: pc.inv.Arguments,
				Kind:      ErrArgumentValidation,
				Cause:     err,
			}
		}
	}

	timeout := pc.tool.Timeout
	if timeout <= 0 {
		timeout = d.callTimeoutValue()
	}

	callCtx, cancel := context.WithTimeoutCause(ctx, timeout, ErrCallTimeout)
	defer cancel()

	logger.Debug().
		Interface("arguments", d.redactArgs(pc.inv.Arguments)).
		Msg("Executing tool call")

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		// A panicking handler must not take the whole process down.
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("handler panicked: %v", r)
			}
		}()

		result, err := pc.tool.Handler(callCtx, pc.inv.Arguments)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		duration := time.Since(start)
		logger.Debug().Dur("duration", duration).Msg("Tool call completed")
		rec.finish(pc.inv.ID, StateSucceeded, duration, "")
		d.observeCall(pc.inv.Tool, lane, "ok", duration)

		return Outcome{
			ID:        pc.inv.ID,
			Tool:      pc.inv.Tool,
			Arguments: pc.inv.Arguments,
			Result:    result,
		}, nil

	case err := <-errChan:
		duration := time.Since(start)
		logger.Error().Err(err).Dur("duration", duration).Msg("Tool call failed")
		rec.finish(pc.inv.ID, StateFailed, duration, err.Error())
		d.observeCall(pc.inv.Tool, lane, "failed", duration)

		return Outcome{}, &CallError{
			CallID:    pc.inv.ID,
			Tool:      pc.inv.Tool,
			Arguments: pc.inv.Arguments,
			Kind:      ErrToolExecution,
			Cause:     err,
		}

	case <-callCtx.Done():
		duration := time.Since(start)
		cause := context.Cause(callCtx)

		if errors.Is(cause, ErrCallTimeout) {
			logger.Error().Dur("timeout", timeout).Msg("Tool call timed out")
			rec.finish(pc.inv.ID, StateTimedOut, duration, fmt.Sprintf("timed out after %v", timeout))
			d.observeCall(pc.inv.Tool, lane, "timeout", duration)

			return Outcome{}, &CallError{
				CallID:    pc.inv.ID,
				Tool:      pc.inv.Tool,
				Arguments: pc.inv.Arguments,
				Kind:      ErrCallTimeout,
			}
		}

		logger.Warn().Dur("duration", duration).Msg("Tool call cancelled")
		rec.finish(pc.inv.ID, StateCancelled, duration, "cancelled before completion")
		d.observeCall(pc.inv.Tool, lane, "cancelled", duration)

		return Outcome{}, &CallError{
			CallID:    pc.inv.ID,
			Tool:      pc.inv.Tool,
			Arguments: pc.inv.Arguments,
			Kind:      ErrCallCancelled,
		}
	}
}
