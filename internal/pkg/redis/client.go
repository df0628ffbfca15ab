// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Nil 透传 go-redis 的 key 不存在错误
const Nil = goredis.Nil

// Client 包装 UniversalClient，并管理预加载的 Lua 脚本
type Client struct {
	client goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 连接单机或集群。addrs 逗号分隔。
func NewClient(addrs, password string, db int) (*Client, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    strings.Split(addrs, ","),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", addrs, err)
	}
	return NewFromUniversal(rdb), nil
}

// NewFromUniversal 包装一个已有的客户端
func NewFromUniversal(rdb goredis.UniversalClient) *Client {
	return &Client{client: rdb, scripts: make(map[string]*goredis.Script)}
}

// LoadScriptFromContent 注册并预加载脚本到 redis 脚本缓存
func (c *Client) LoadScriptFromContent(name, src string) error {
	script := goredis.NewScript(src)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := script.Load(ctx, c.client).Err(); err != nil {
		return fmt.Errorf("load script %s: %w", name, err)
	}

	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 执行已注册的脚本，EVALSHA 失败时自动回退 EVAL
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %s not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

// GetClient 暴露底层客户端
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
