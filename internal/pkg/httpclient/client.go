// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/metrics"
)

// ErrUnavailable 下游不可达：连接失败、超时或响应无法读取
var ErrUnavailable = errors.New("upstream unavailable")

// Resolver 把服务名解析为 base URL，例如 http://10.0.0.3:8001
type Resolver interface {
	Resolve(ctx context.Context, service string) (string, error)
}

// StaticResolver 使用配置中的固定地址
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, service string) (string, error) {
	base, ok := s[service]
	if !ok || base == "" {
		return "", fmt.Errorf("no address configured for service %q", service)
	}
	return base, nil
}

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client

	resolver Resolver
	timeout  time.Duration
}

// NewClient 创建一个新的客户端实例。timeout 作用于每次调用的 context。
func NewClient(tracer trace.Tracer, resolver Resolver, timeout time.Duration) *Client {
	// http.Client 不设置 Timeout，完全受控于每次请求传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		resolver:   resolver,
		timeout:    timeout,
	}
}

// GetJSON 发起 GET 请求，把响应体解析到 out。返回下游状态码。
func (c *Client) GetJSON(ctx context.Context, service, path string, out interface{}) (int, error) {
	return c.Do(ctx, http.MethodGet, service, path, nil, out)
}

// PostJSON 发起 POST 请求，in 编码为 JSON 请求体
func (c *Client) PostJSON(ctx context.Context, service, path string, in, out interface{}) (int, error) {
	return c.Do(ctx, http.MethodPost, service, path, in, out)
}

// Do 调用下游服务。
// 只有传输层错误返回 ErrUnavailable；4xx/5xx 作为状态码返回，由调用方解释。
// 非 2xx 响应体也会尝试解析到 out，解析失败时忽略。
func (c *Client) Do(ctx context.Context, method, service, path string, in, out interface{}) (int, error) {
	ctx, span := c.Tracer.Start(ctx, fmt.Sprintf("call-%s", service), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	status, err := c.do(ctx, method, service, path, in, out, span)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		outcome = strconv.Itoa(status)
		span.SetStatus(codes.Error, http.StatusText(status))
	case status >= http.StatusBadRequest:
		outcome = strconv.Itoa(status)
	}
	metrics.UpstreamDuration.WithLabelValues(service, method, outcome).Observe(time.Since(start).Seconds())
	return status, err
}

func (c *Client) do(ctx context.Context, method, service, path string, in, out interface{}, span trace.Span) (int, error) {
	base, err := c.resolver.Resolve(ctx, service)
	if err != nil {
		return 0, errors.Wrapf(ErrUnavailable, "resolve %s: %v", service, err)
	}
	target := strings.TrimRight(base, "/") + path

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(payload)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	span.SetAttributes(
		attribute.String("http.url", target),
		attribute.String("http.method", method),
		attribute.String("peer.service", service),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, errors.Wrapf(ErrUnavailable, "%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrapf(ErrUnavailable, "read response from %s: %v", target, err)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode < http.StatusMultipleChoices {
		return resp.StatusCode, errors.Wrapf(err, "decode response from %s", target)
	}
	return resp.StatusCode, nil
}
