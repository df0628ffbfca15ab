// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"storefront/internal/pkg/database"
)

const (
	// EnvPrefix 环境变量前缀，例如 STOREFRONT_INFRA_JAEGER_ENDPOINT
	EnvPrefix         = "STOREFRONT"
	defaultConfigPath = "configs/config.yaml"
)

// Config 是所有服务共享的配置结构，先读 YAML 文件，再用环境变量覆盖
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Services  ServicesConfig  `yaml:"services"`
	Upstreams UpstreamsConfig `yaml:"upstreams"`
	Placement PlacementConfig `yaml:"placement"`
}

type AppConfig struct {
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"log_level" split_words:"true"`
	LogPretty bool   `yaml:"log_pretty" split_words:"true"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type JaegerConfig struct {
	// 为空时只在进程内生成 span，不做导出
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs" split_words:"true"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type RedisConfig struct {
	// 逗号分隔；为空表示不启用
	Addrs    string `yaml:"addrs"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout" split_words:"true"`
	LockRoot       string        `yaml:"lock_root" split_words:"true"`
	LockTimeout    time.Duration `yaml:"lock_timeout" split_words:"true"`
}

// ServiceConfig 单个服务的监听端口、静态地址与数据库
type ServiceConfig struct {
	Port     int             `yaml:"port"`
	URL      string          `yaml:"url"`
	Database database.Config `yaml:"database"`
}

type ServicesConfig struct {
	User    ServiceConfig `yaml:"user"`
	Product ServiceConfig `yaml:"product"`
	Order   ServiceConfig `yaml:"order"`
}

type UpstreamsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// 列表读取时补全用户/商品信息的并发上限
	EnrichConcurrency int `yaml:"enrich_concurrency" split_words:"true"`
}

type PlacementConfig struct {
	// CEL 表达式，变量: user_id, shipping_address, items
	AdmissionPolicy            string        `yaml:"admission_policy" split_words:"true"`
	LockProducts               bool          `yaml:"lock_products" split_words:"true"`
	CompensatePartialDecrement bool          `yaml:"compensate_partial_decrement" split_words:"true"`
	IdempotencyTTL             time.Duration `yaml:"idempotency_ttl" split_words:"true"`
}

var current atomic.Pointer[Config]

// Default 返回内置默认值，配置文件和环境变量在此基础上覆盖
func Default() Config {
	return Config{
		App: AppConfig{Env: "dev", LogLevel: "info"},
		Infra: InfraConfig{
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Kafka:     KafkaConfig{Topic: "order-events"},
			Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second, LockRoot: "/storefront/locks", LockTimeout: 5 * time.Second},
		},
		Services: ServicesConfig{
			User: ServiceConfig{Port: 8000, URL: "http://localhost:8000",
				Database: database.Config{Driver: database.DriverSQLite, Path: "user.db", AutoMigrate: true}},
			Product: ServiceConfig{Port: 8001, URL: "http://localhost:8001",
				Database: database.Config{Driver: database.DriverSQLite, Path: "product.db", AutoMigrate: true}},
			Order: ServiceConfig{Port: 8002, URL: "http://localhost:8002",
				Database: database.Config{Driver: database.DriverSQLite, Path: "order.db", AutoMigrate: true}},
		},
		Upstreams: UpstreamsConfig{Timeout: 3 * time.Second, EnrichConcurrency: 8},
		Placement: PlacementConfig{IdempotencyTTL: 24 * time.Hour},
	}
}

// LoadConfig 读取指定路径的 YAML 并应用环境变量覆盖。文件不存在时只使用默认值。
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}
	return &cfg, nil
}

// Init 加载配置并设置为当前配置。路径由 CONFIG_FILE 指定。
func Init() *Config {
	path := defaultConfigPath
	if p, ok := os.LookupEnv("CONFIG_FILE"); ok && p != "" {
		path = p
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	current.Store(cfg)
	return cfg
}

// GetCurrentConfig 返回当前生效的配置；未调用 Init 时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	cfg := Default()
	current.CompareAndSwap(nil, &cfg)
	return current.Load()
}
