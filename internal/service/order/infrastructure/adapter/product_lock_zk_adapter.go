package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-zookeeper/zk"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/zookeeper"
	"storefront/internal/service/order/domain"
)

// ProductLockZKAdapter 实现了 port.ProductLocker 接口，每个商品一个 ZooKeeper 锁
type ProductLockZKAdapter struct {
	conn    *zk.Conn
	root    string
	timeout time.Duration
}

func NewProductLockZKAdapter(conn *zk.Conn, root string, timeout time.Duration) *ProductLockZKAdapter {
	return &ProductLockZKAdapter{conn: conn, root: root, timeout: timeout}
}

// LockProducts 按传入顺序加锁，任一失败则释放已持有的锁
func (a *ProductLockZKAdapter) LockProducts(ctx context.Context, productIDs []int64) (func(), error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	held := make([]*zookeeper.DistributedLock, 0, len(productIDs))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to release product lock")
			}
		}
	}

	for _, id := range productIDs {
		lock, err := zookeeper.NewDistributedLock(a.conn, a.root, "product-"+strconv.FormatInt(id, 10))
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: lock product %d: %v", domain.ErrUpstreamUnavailable, id, err)
		}
		if err := lock.Lock(ctx); err != nil {
			release()
			return nil, fmt.Errorf("%w: lock product %d: %v", domain.ErrUpstreamUnavailable, id, err)
		}
		held = append(held, lock)
	}
	return release, nil
}
