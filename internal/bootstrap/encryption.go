package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/oculus-oct/oculus-go/internal/data/cryptoutil"
)

// CreateSealer builds the sealer used for stored tokens.
// An empty key stores tokens unsealed (with a warning); an invalid key is an error,
// since silently falling back would write credentials in the clear.
//
//nolint:ireturn // Returning interface is intentional for sealer abstraction
func CreateSealer(key string, logger *slog.Logger) (cryptoutil.Sealer, error) {
	sealer, err := cryptoutil.FromKey(key)
	if err != nil {
		return nil, fmt.Errorf("session encryption key: %w", err)
	}
	if _, plain := sealer.(cryptoutil.PlainSealer); plain && logger != nil {
		logger.Warn("session encryption key is empty, tokens are stored unsealed")
	}
	return sealer, nil
}
