package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "coupon:"

// CachedValidator keeps validation results in Redis for ttl. Redis errors are
// logged and the lookup falls through to the wrapped validator.
type CachedValidator struct {
	next   Validator
	client *redis.Client
	ttl    time.Duration
}

func NewCachedValidator(next Validator, client *redis.Client, ttl time.Duration) *CachedValidator {
	return &CachedValidator{next: next, client: client, ttl: ttl}
}

func (v *CachedValidator) Validate(ctx context.Context, code string) (Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Result{}, ErrEmptyCode
	}
	key := cacheKeyPrefix + code

	cached, err := v.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var result Result
		if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
			return result, nil
		}
		log.Printf("Discarding corrupt cached coupon %s", code)
	case !errors.Is(err, redis.Nil):
		log.Printf("Coupon cache read failed for %s: %v", code, err)
	}

	result, err := v.next.Validate(ctx, code)
	if err != nil {
		return Result{}, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := v.client.Set(ctx, key, data, v.ttl).Err(); err != nil {
		log.Printf("Coupon cache write failed for %s: %v", code, err)
	}
	return result, nil
}

