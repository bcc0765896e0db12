package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
)

// LoanCache stores read snapshots of a loan with its schedule.
type LoanCache interface {
	Get(ctx context.Context, loanID uuid.UUID) (*domain.LoanDetails, bool, error)
	Set(ctx context.Context, details *domain.LoanDetails) error
	Invalidate(ctx context.Context, loanID uuid.UUID) error
}

func OpenRedis(addr, password string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

type RedisLoanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLoanCache(client *redis.Client, ttl time.Duration) *RedisLoanCache {
	return &RedisLoanCache{client: client, ttl: ttl}
}

func loanKey(loanID uuid.UUID) string {
	return fmt.Sprintf("loan:%s", loanID)
}

func (c *RedisLoanCache) Get(ctx context.Context, loanID uuid.UUID) (*domain.LoanDetails, bool, error) {
	raw, err := c.client.Get(ctx, loanKey(loanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, customError.WrapCacheError(err)
	}

	var details domain.LoanDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		// Undecodable entries are treated as a miss and dropped.
		_ = c.client.Del(ctx, loanKey(loanID)).Err()
		return nil, false, nil
	}
	return &details, true, nil
}

func (c *RedisLoanCache) Set(ctx context.Context, details *domain.LoanDetails) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, loanKey(details.Loan.ID), raw, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *RedisLoanCache) Invalidate(ctx context.Context, loanID uuid.UUID) error {
	if err := c.client.Del(ctx, loanKey(loanID)).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// Noop is used when redis is disabled; every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID) (*domain.LoanDetails, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, *domain.LoanDetails) error { return nil }

func (Noop) Invalidate(context.Context, uuid.UUID) error { return nil }
