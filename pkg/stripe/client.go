// Package stripe sends supplier payouts as Stripe Connect transfers.
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/transfer"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes each mode accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

type transferFunc func(*stripe.TransferParams) (*stripe.Transfer, error)

// Client issues transfers with a per-client backend key. It never touches
// the package level stripe.Key.
type Client struct {
	key    string
	mode   string
	logg   *logger.Logger
	create transferFunc
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	mode := cfg.Environment()
	if err := checkKey(mode, key); err != nil {
		return nil, err
	}
	logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client ready")
	api := transfer.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key}
	return &Client{key: key, mode: mode, logg: logg, create: api.New}, nil
}

// Mode reports "test" or "live".
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func checkKey(mode, key string) error {
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return fmt.Errorf("stripe environment must be test or live, got %q", mode)
	}
	if key == "" {
		return fmt.Errorf("stripe api key is required")
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return nil
		}
	}
	return fmt.Errorf("stripe %s mode needs a key starting with %s", mode, strings.Join(prefixes, " or "))
}
