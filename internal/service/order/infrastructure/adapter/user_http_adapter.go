package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// UserHTTPAdapter 实现了 port.UserDirectory 接口
type UserHTTPAdapter struct {
	client *httpclient.Client
}

func NewUserHTTPAdapter(client *httpclient.Client) *UserHTTPAdapter {
	return &UserHTTPAdapter{client: client}
}

// LookupUser 返回用户资料的原始 JSON，订单响应中原样嵌入
func (a *UserHTTPAdapter) LookupUser(ctx context.Context, userID int64) (*port.UserInfo, error) {
	var raw json.RawMessage
	status, err := a.client.GetJSON(ctx, constants.UserService, fmt.Sprintf(constants.UserLookupPath, userID), &raw)
	if err != nil {
		return nil, unavailable(err)
	}

	switch status {
	case http.StatusOK:
		return &port.UserInfo{ID: userID, Raw: raw}, nil
	case http.StatusNotFound:
		return nil, domain.ErrUserNotFound
	default:
		return nil, unexpectedStatus(constants.UserService, status)
	}
}
