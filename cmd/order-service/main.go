// cmd/order-service/main.go
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/database"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/mq"
	"storefront/internal/pkg/redis"
	"storefront/internal/pkg/zookeeper"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/infrastructure"
	"storefront/internal/service/order/infrastructure/adapter"
	"storefront/internal/service/order/interfaces"
)

func main() {
	cfg := bootstrap.Init()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      constants.OrderService,
		Port:             cfg.Services.Order.Port,
		RegisterHandlers: registerHandlers,
	})
}

// registerHandlers 是订单服务的组装根：按配置创建各个适配器并注入应用服务
func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config

	db, err := database.Open(cfg.Services.Order.Database, infrastructure.Models()...)
	if err != nil {
		return err
	}
	appCtx.AddCloser(func(context.Context) error { return database.Close(db) })

	client := httpclient.NewClient(appCtx.Tracer, appCtx.Resolver(), cfg.Upstreams.Timeout)
	deps := application.Dependencies{
		Orders:  infrastructure.NewGormOrderRepository(db),
		Journal: infrastructure.NewGormStockJournal(db),
		Users:   adapter.NewUserHTTPAdapter(client),
		Catalog: adapter.NewCatalogHTTPAdapter(client),
	}

	// 事件发布
	if brokers := cfg.Infra.Kafka.Brokers; brokers != "" {
		publisher := adapter.NewEventKafkaAdapter(mq.NewKafkaWriter(strings.Split(brokers, ","), cfg.Infra.Kafka.Topic))
		appCtx.AddCloser(func(context.Context) error { return publisher.Close() })
		deps.Publisher = publisher
	} else {
		log.Warn().Msg("kafka brokers not configured, order events will only be logged")
		deps.Publisher = adapter.LogEventPublisher{}
	}

	// 幂等键
	if addrs := cfg.Infra.Redis.Addrs; addrs != "" {
		redisClient, err := redis.NewClient(addrs, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			return err
		}
		appCtx.AddCloser(func(context.Context) error { return redisClient.Close() })
		store, err := adapter.NewIdempotencyRedisAdapter(redisClient, cfg.Placement.IdempotencyTTL)
		if err != nil {
			return err
		}
		deps.Idempotency = store
	}

	// 商品锁
	if cfg.Placement.LockProducts {
		zkCfg := cfg.Infra.Zookeeper
		if zkCfg.Servers == "" {
			return fmt.Errorf("placement.lock_products requires infra.zookeeper.servers")
		}
		conn, err := zookeeper.Connect(zkCfg.Servers, zkCfg.SessionTimeout)
		if err != nil {
			return err
		}
		appCtx.AddCloser(func(context.Context) error {
			conn.Close()
			return nil
		})
		deps.Locker = adapter.NewProductLockZKAdapter(conn, zkCfg.LockRoot, zkCfg.LockTimeout)
	}

	// 下单准入规则
	if expr := strings.TrimSpace(cfg.Placement.AdmissionPolicy); expr != "" {
		policy, err := adapter.NewCELAdmissionAdapter(expr)
		if err != nil {
			return err
		}
		deps.Policy = policy
	}

	service := application.NewOrderApplicationService(deps, application.Options{
		CompensatePartialDecrement: cfg.Placement.CompensatePartialDecrement,
		EnrichConcurrency:          cfg.Upstreams.EnrichConcurrency,
	}, appCtx.Tracer)
	interfaces.NewOrderHandler(service).RegisterRoutes(appCtx.Router)

	log.Info().
		Bool("idempotency", deps.Idempotency != nil).
		Bool("product_lock", deps.Locker != nil).
		Bool("admission_policy", deps.Policy != nil).
		Bool("compensate_partial_decrement", cfg.Placement.CompensatePartialDecrement).
		Msg("order service wired")
	return nil
}
