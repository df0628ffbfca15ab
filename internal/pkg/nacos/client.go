// Package nacos 服务注册与发现
package nacos

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultGroup = "DEFAULT_GROUP"

// Instance 一个服务实例的注册信息
type Instance struct {
	Service  string
	IP       string
	Port     int
	Metadata map[string]string
}

func (i Instance) String() string {
	return fmt.Sprintf("%s@%s", i.Service, net.JoinHostPort(i.IP, strconv.Itoa(i.Port)))
}

// Client 封装了 Nacos 命名客户端，同时实现 httpclient.Resolver
type Client struct {
	naming naming_client.INamingClient
	group  string
}

// ParseServerConfigs 解析 "host1:port1,host2:port2"，忽略空项
func ParseServerConfigs(addrs string) ([]constant.ServerConfig, error) {
	var servers []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid nacos address %q", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid port in nacos address %q", addr)
		}
		servers = append(servers, *constant.NewServerConfig(host, port))
	}
	if len(servers) == 0 {
		return nil, errors.Errorf("no nacos server address in %q", addrs)
	}
	return servers, nil
}

// NewNacosClient namespace 为空时使用 public，group 为空时使用 DEFAULT_GROUP
func NewNacosClient(addrs, namespace, group string) (*Client, error) {
	servers, err := ParseServerConfigs(addrs)
	if err != nil {
		return nil, err
	}
	if group == "" {
		group = defaultGroup
	}
	if namespace == "" {
		log.Warn().Msg("nacos namespace is not set, using public")
	}

	clientConfig := constant.NewClientConfig(
		constant.WithNamespaceId(namespace),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
	)
	naming, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  clientConfig,
		ServerConfigs: servers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos naming client")
	}

	log.Info().Str("addrs", addrs).Str("group", group).Msg("connected to nacos")
	return &Client{naming: naming, group: group}, nil
}

// Register 以临时实例注册，心跳断开后由 nacos 自动摘除
func (c *Client) Register(inst Instance) error {
	ok, err := c.naming.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          inst.IP,
		Port:        uint64(inst.Port),
		ServiceName: inst.Service,
		GroupName:   c.group,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    inst.Metadata,
	})
	if err != nil {
		return errors.Wrapf(err, "register %s", inst)
	}
	if !ok {
		return errors.Errorf("nacos rejected registration of %s", inst)
	}
	log.Info().Stringer("instance", inst).Msg("registered to nacos")
	return nil
}

func (c *Client) Deregister(inst Instance) error {
	if _, err := c.naming.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          inst.IP,
		Port:        uint64(inst.Port),
		ServiceName: inst.Service,
		GroupName:   c.group,
		Ephemeral:   true,
	}); err != nil {
		return errors.Wrapf(err, "deregister %s", inst)
	}
	log.Info().Stringer("instance", inst).Msg("deregistered from nacos")
	return nil
}

// Resolve 按 nacos 的权重挑选一个健康实例，返回 http base URL
func (c *Client) Resolve(_ context.Context, service string) (string, error) {
	inst, err := c.naming.SelectOneHealthyInstance(vo.SelectOneHealthInstanceParam{
		ServiceName: service,
		GroupName:   c.group,
	})
	if err != nil {
		return "", errors.Wrapf(err, "select healthy instance of %s", service)
	}
	if inst == nil {
		return "", errors.Errorf("no healthy instance of %s", service)
	}
	return "http://" + net.JoinHostPort(inst.Ip, strconv.FormatUint(inst.Port, 10)), nil
}

func (c *Client) Close() {
	c.naming.CloseClient()
}
