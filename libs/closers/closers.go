package closers

import (
	"context"
	"io"

	"github.com/opencommerce/payment-go/libs/logging"
)

// Panic calls Close on the specified closer, panicking on error
func Panic(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		panic(err.Error())
	}
}

// Log calls Close on the specified closer, logging any error
func Log(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("failed to close")
	}
}
