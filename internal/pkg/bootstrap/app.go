// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/pkg/nacos"
	"storefront/internal/pkg/tracing"
)

// AppCtx 交给各服务注册路由与依赖
type AppCtx struct {
	Router chi.Router
	Config *Config
	Tracer trace.Tracer
	Nacos  *nacos.Client // 未启用 nacos 时为 nil

	mu      sync.Mutex
	closers []func(context.Context) error
}

// AddCloser 注册关停时执行的清理函数，按注册的逆序执行
func (a *AppCtx) AddCloser(fn func(context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// Resolver 返回服务发现：启用 nacos 时走注册中心，否则使用配置里的静态地址
func (a *AppCtx) Resolver() httpclient.Resolver {
	if a.Nacos != nil {
		return a.Nacos
	}
	return StaticResolver(a.Config)
}

// StaticResolver 由配置中的 services.*.url 构造
func StaticResolver(cfg *Config) httpclient.StaticResolver {
	return httpclient.StaticResolver{
		constants.UserService:    cfg.Services.User.URL,
		constants.ProductService: cfg.Services.Product.URL,
		constants.OrderService:   cfg.Services.Order.URL,
	}
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx *AppCtx) error
}

// NewRouter 创建带有通用中间件、/healthz 与 /metrics 的路由
func NewRouter(serviceName string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(instrument(serviceName))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// instrument 提取上游 trace 上下文、创建 server span 并记录请求指标
func instrument(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
				attribute.String("http.request_id", middleware.GetReqID(r.Context())),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			metrics.HTTPRequests.WithLabelValues(serviceName, r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPDuration.WithLabelValues(serviceName, r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	logger.Init(info.ServiceName, cfg.App.LogLevel, cfg.App.LogPretty)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	appCtx := &AppCtx{
		Router: NewRouter(info.ServiceName),
		Config: cfg,
		Tracer: otel.Tracer(info.ServiceName),
	}

	// 2. 服务注册（可选）
	var instance nacos.Instance
	if cfg.Infra.Nacos.Enabled {
		appCtx.Nacos, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err := GetOutboundIP()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		instance = nacos.Instance{
			Service:  info.ServiceName,
			IP:       ip,
			Port:     info.Port,
			Metadata: map[string]string{"env": cfg.App.Env},
		}
		if err := appCtx.Nacos.Register(instance); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 3. 各服务注册自己的路由
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			log.Fatal().Err(err).Msgf("failed to set up %s", info.ServiceName)
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           appCtx.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 4. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// a. 先从注册中心摘除，避免新流量进入
	if appCtx.Nacos != nil {
		if err := appCtx.Nacos.Deregister(instance); err != nil {
			log.Error().Err(err).Msg("error deregistering from nacos")
		}
		appCtx.Nacos.Close()
	}

	// b. 关闭 HTTP 服务器，等待进行中的请求
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	// c. 关闭各服务注册的资源（后进先出）
	for i := len(appCtx.closers) - 1; i >= 0; i-- {
		if err := appCtx.closers[i](ctx); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}

	// d. 刷新缓冲的 span
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}

	log.Info().Msgf("service %s gracefully shut down", info.ServiceName)
}

// GetOutboundIP 返回本机对外通信使用的 IP
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
