// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog/log"
)

// ErrLockTimeout 在 context 到期前没有拿到锁
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Connect 建立 ZooKeeper 会话。servers 为逗号分隔的 host:port。
func Connect(servers string, sessionTimeout time.Duration) (*zk.Conn, error) {
	zl := log.With().Str("component", "zookeeper").Logger()
	conn, _, err := zk.Connect(strings.Split(servers, ","), sessionTimeout, zk.WithLogger(&zl))
	if err != nil {
		return nil, fmt.Errorf("connect to zookeeper %s: %w", servers, err)
	}
	return conn, nil
}

// DistributedLock 基于临时顺序节点的互斥锁
type DistributedLock struct {
	conn     *zk.Conn
	path     string // 锁的路径，例如 /storefront/locks/product-42
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，必要时创建父节点
func NewDistributedLock(conn *zk.Conn, root, resourceID string) (*DistributedLock, error) {
	lockPath := path.Join(root, resourceID)
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensurePath(conn *zk.Conn, p string) error {
	cur := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		cur += "/" + part
		exists, _, err := conn.Exists(cur)
		if err != nil {
			return fmt.Errorf("check lock node %s: %w", cur, err)
		}
		if exists {
			continue
		}
		if _, err := conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create lock node %s: %w", cur, err)
		}
	}
	return nil
}

// Lock 阻塞直到获取锁或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	// 受保护的临时顺序节点，格式为 _c_<guid>-lock-0000000001
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sortBySequence(children)

		idx := indexOf(children, myNodeName)
		if idx < 0 {
			l.abandon()
			return errors.New("lock node disappeared, session may have expired")
		}
		if idx == 0 {
			return nil
		}

		// 不是最小节点，只监听前一个节点
		exists, _, events, err := l.conn.ExistsW(l.path + "/" + children[idx-1])
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-events:
		case <-ctx.Done():
			l.abandon()
			return fmt.Errorf("%w: %s", ErrLockTimeout, l.path)
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

func (l *DistributedLock) abandon() {
	if err := l.Unlock(); err != nil {
		log.Warn().Err(err).Str("lock", l.path).Msg("failed to clean up lock node")
	}
}

// sortBySequence 按 ZooKeeper 追加的 10 位序号排序。
// 受保护节点带有 GUID 前缀，直接按字符串排序会打乱顺序。
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
}

func sequenceOf(node string) string {
	const seqLen = 10
	if len(node) < seqLen {
		return node
	}
	return node[len(node)-seqLen:]
}

func indexOf(children []string, name string) int {
	for i, c := range children {
		if c == name {
			return i
		}
	}
	return -1
}
