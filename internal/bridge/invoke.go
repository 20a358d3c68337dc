package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

// Invoke calls cmd on the host and decodes its result. Every failure is an
// *InvokeError. There are no retries; concurrent calls are independent.
func Invoke[A, R any](ctx context.Context, h Host, cmd contract.Command[A, R], args A) (R, error) {
	var zero R
	name := cmd.Name()
	contract.LookupCommand(name)

	c := asConn(h)
	ctx, span := observability.StartInvokeSpan(ctx, name)
	defer span.End()
	start := time.Now()

	fail := func(kind ErrorKind, cause error) (R, error) {
		err := &InvokeError{Kind: kind, Command: name, Cause: cause}
		observability.RecordError(span, err)
		c.metrics.RecordInvocation(ctx, name, time.Since(start), kind.String())
		c.logger.WithContext(ctx).WithField("command", name).WithError(cause).Debugf("invoke failed: %s", kind)
		return zero, err
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fail(TransportFailure, err)
	}

	raw, err := c.Call(ctx, name, payload)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			// the Conn timeout fired, not the caller's deadline
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return fail(TransportFailure, err)
	}

	result, err := cmd.DecodeResult(raw)
	if err != nil {
		return fail(UnexpectedData, err)
	}

	observability.SetSuccess(span)
	c.metrics.RecordInvocation(ctx, name, time.Since(start), "")
	return result, nil
}
