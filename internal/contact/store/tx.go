package store

import (
	"context"
	"time"

	dErrors "contactgraph/pkg/domain-errors"
)

const tracerName = "contactgraph/internal/contact/store"

// defaultTxTimeout is the maximum duration of a reconciliation transaction.
const defaultTxTimeout = 5 * time.Second

type options struct {
	txTimeout time.Duration
}

// Option configures a contact store.
type Option func(*options)

// WithTxTimeout overrides the default transaction timeout.
func WithTxTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.txTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{txTimeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// txContext checks that ctx is still live and bounds it by the transaction
// timeout. An earlier caller deadline still wins. The returned cancel func is
// never nil.
func txContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, abortedErr(err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

func abortedErr(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
}
