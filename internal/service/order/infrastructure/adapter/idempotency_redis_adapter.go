package adapter

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/pkg/redis"
)

const (
	claimScriptName   = "idempotency_claim"
	releaseScriptName = "idempotency_release"

	idempotencyPending = "pending"
)

// IdempotencyRedisAdapter 是 port.IdempotencyStore 接口的 Redis 实现。
// key 的值为 "pending" 表示处理中，为数字表示已完成的订单 ID。
type IdempotencyRedisAdapter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewIdempotencyRedisAdapter 在创建时加载所需的 Lua 脚本
func NewIdempotencyRedisAdapter(redisClient *redis.Client, ttl time.Duration) (*IdempotencyRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(claimScriptName, claimScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency claim script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency release script: %w", err)
	}
	return &IdempotencyRedisAdapter{redisClient: redisClient, ttl: ttl}, nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("storefront:idempotency:{%s}", key)
}

func (a *IdempotencyRedisAdapter) Claim(ctx context.Context, key string) (int64, bool, error) {
	result, err := a.redisClient.RunScript(ctx, claimScriptName,
		[]string{idempotencyKey(key)}, idempotencyPending, a.ttl.Milliseconds())
	if err != nil {
		return 0, false, fmt.Errorf("idempotency adapter failed to run script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch {
	case code == 0:
		return 0, true, nil
	case code < 0:
		return 0, false, nil
	default:
		return code, false, nil
	}
}

func (a *IdempotencyRedisAdapter) Complete(ctx context.Context, key string, orderID int64) error {
	return a.redisClient.GetClient().Set(ctx, idempotencyKey(key), orderID, a.ttl).Err()
}

// Release 只删除仍处于 pending 的 key
func (a *IdempotencyRedisAdapter) Release(ctx context.Context, key string) error {
	_, err := a.redisClient.RunScript(ctx, releaseScriptName, []string{idempotencyKey(key)}, idempotencyPending)
	return err
}

// KEYS[1]: 幂等 key
// ARGV[1]: pending 标记
// ARGV[2]: 过期时间（毫秒）
// 返回 0 表示占用成功，-1 表示处理中，正数为已完成的订单 ID
var claimScript = `
local v = redis.call('get', KEYS[1])
if not v then
    redis.call('set', KEYS[1], ARGV[1], 'PX', ARGV[2])
    return 0
end
if v == ARGV[1] then
    return -1
end
return tonumber(v)
`

var releaseScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
