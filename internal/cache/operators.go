// internal/cache/operators.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nyasabox/nyasabox-api/pkg/paychangu"
)

const operatorsKey = "nyasabox:payments:operators"

// OperatorCache keeps the gateway's operator list in Redis between requests.
type OperatorCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewOperatorCache(client redis.UniversalClient, ttl time.Duration) *OperatorCache {
	return &OperatorCache{client: client, ttl: ttl}
}

// Get returns the cached list. Misses and Redis errors both report false.
func (c *OperatorCache) Get(ctx context.Context) ([]paychangu.Operator, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, operatorsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).Warn("Operator cache read failed")
		}
		return nil, false
	}

	var operators []paychangu.Operator
	if err := json.Unmarshal(raw, &operators); err != nil || len(operators) == 0 {
		return nil, false
	}
	return operators, true
}

// Set stores a non-empty list.
func (c *OperatorCache) Set(ctx context.Context, operators []paychangu.Operator) {
	if c == nil || c.client == nil || len(operators) == 0 {
		return
	}

	raw, err := json.Marshal(operators)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, operatorsKey, raw, c.ttl).Err(); err != nil {
		logrus.WithError(err).Warn("Operator cache write failed")
	}
}
