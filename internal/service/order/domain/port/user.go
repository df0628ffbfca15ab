package port

import (
	"context"
	"encoding/json"
)

// UserInfo 用户目录返回的资料，原样嵌入订单响应
type UserInfo struct {
	ID  int64
	Raw json.RawMessage
}

// UserDirectory 用户目录的出站端口。
// 用户不存在返回 domain.ErrUserNotFound；传输失败返回 domain.ErrUpstreamUnavailable。
type UserDirectory interface {
	LookupUser(ctx context.Context, userID int64) (*UserInfo, error)
}
