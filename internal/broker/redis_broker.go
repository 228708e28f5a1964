package broker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"submux/internal/core/dispose"
	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
	"submux/internal/pubsub"
)

const (
	defaultRedisAddr           = "localhost:6379"
	defaultPoolSize            = 10
	defaultDialTimeout         = 5 * time.Second
	defaultHealthCheckInterval = 30 * time.Second
)

// RedisBrokerConfig Redis Broker 配置
type RedisBrokerConfig struct {
	Addrs               []string      // Redis 地址列表
	Username            string        // ACL 用户名
	Password            string        // 密码
	DB                  int           // 数据库编号，集群模式忽略
	ClusterMode         bool          // 是否集群模式
	PoolSize            int           // 连接池大小
	DialTimeout         time.Duration // 建连超时
	HealthCheckInterval time.Duration // 订阅连接空闲多久后发送 PING
}

func (c *RedisBrokerConfig) applyDefaults() {
	if len(c.Addrs) == 0 {
		c.Addrs = []string{defaultRedisAddr}
	}
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
}

// RedisBroker Redis 消息代理
//
// 每次 Open 创建独立的 *redis.PubSub，即一条专用订阅连接。
type RedisBroker struct {
	*dispose.ServiceBase
	client      redis.UniversalClient // 支持单机和集群
	healthCheck time.Duration

	mu       sync.Mutex
	sessions map[*redisSession]struct{}
}

// NewRedisBroker 创建 Redis 消息代理并检查连通性
func NewRedisBroker(parentCtx context.Context, config *RedisBrokerConfig) (*RedisBroker, error) {
	if config == nil {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "redis broker config is required")
	}
	cfg := *config
	cfg.applyDefaults()

	var client redis.UniversalClient
	if cfg.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			DialTimeout: cfg.DialTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:        cfg.Addrs[0],
			Username:    cfg.Username,
			Password:    cfg.Password,
			DB:          cfg.DB,
			PoolSize:    cfg.PoolSize,
			DialTimeout: cfg.DialTimeout,
		})
	}

	pingCtx, pingCancel := context.WithTimeout(parentCtx, cfg.DialTimeout)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, coreerrors.Wrapf(err, coreerrors.CodeConnectionError, "failed to connect to redis at %v", cfg.Addrs)
	}

	b := &RedisBroker{
		ServiceBase: dispose.NewService("RedisBroker", parentCtx),
		client:      client,
		healthCheck: cfg.HealthCheckInterval,
		sessions:    make(map[*redisSession]struct{}),
	}
	b.AddCleanHandler(b.onClose)

	corelog.Infof("RedisBroker initialized (addrs: %v, cluster_mode: %v)", cfg.Addrs, cfg.ClusterMode)
	return b, nil
}

// Open 创建新的物理订阅会话
//
// 先 PING 一次确认后端可达，避免连接断开时空转。
// 连续拨号失败后 go-redis 连接池会直接返回上次的拨号错误，直到后台重拨
// 成功（约一秒），因此服务恢复后的头几次 Open 仍可能失败，重试由订阅循环负责。
func (r *RedisBroker) Open(ctx context.Context) (pubsub.Session, error) {
	if r.IsClosed() {
		return nil, coreerrors.ErrResourceClosed
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConnectionError, "redis is unreachable")
	}

	s := &redisSession{
		ps:          r.client.Subscribe(r.Ctx()),
		healthCheck: r.healthCheck,
		broker:      r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.IsClosed() {
		_ = s.ps.Close()
		return nil, coreerrors.ErrResourceClosed
	}
	r.sessions[s] = struct{}{}
	return s, nil
}

// Publish 发布消息到频道
func (r *RedisBroker) Publish(ctx context.Context, channel string, message []byte) (int64, error) {
	if r.IsClosed() {
		return 0, coreerrors.ErrResourceClosed
	}
	n, err := r.client.Publish(ctx, channel, message).Result()
	if err != nil {
		corelog.Errorf("RedisBroker: failed to publish to %s: %v", channel, err)
		return 0, coreerrors.Wrapf(err, coreerrors.CodeConnectionError, "failed to publish to %s", channel)
	}
	corelog.Debugf("RedisBroker: published message to %s, %d receivers", channel, n)
	return n, nil
}

// Ping 检查 Redis 连接
func (r *RedisBroker) Ping(ctx context.Context) error {
	if r.IsClosed() {
		return coreerrors.ErrResourceClosed
	}
	return r.client.Ping(ctx).Err()
}

// SessionCount 当前借出的会话数
func (r *RedisBroker) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *RedisBroker) release(s *redisSession) {
	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

func (r *RedisBroker) onClose() error {
	r.mu.Lock()
	sessions := make([]*redisSession, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	if err := r.client.Close(); err != nil {
		corelog.Warnf("RedisBroker: failed to close redis client: %v", err)
		return err
	}
	corelog.Infof("RedisBroker closed")
	return nil
}

// redisSession 包装 *redis.PubSub
type redisSession struct {
	ps          *redis.PubSub
	healthCheck time.Duration
	broker      *RedisBroker

	closeOnce sync.Once
	closeErr  error
}

// Run 订阅并阻塞读取，空闲超过 healthCheck 时发送 PING 探活
func (s *redisSession) Run(ctx context.Context, channels []string, h pubsub.SessionHandler) error {
	if len(channels) > 0 {
		if err := s.ps.Subscribe(ctx, channels...); err != nil {
			return coreerrors.Wrap(err, coreerrors.CodeHandshakeFailed, "subscribe failed")
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := s.ps.ReceiveTimeout(ctx, s.healthCheck)
		if err != nil {
			if isTimeout(err) {
				if perr := s.ps.Ping(ctx); perr != nil {
					return coreerrors.Wrap(perr, coreerrors.CodeConnectionError, "health check ping failed")
				}
				continue
			}
			return err
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			switch m.Kind {
			case "subscribe":
				h.OnSubscribe(m.Channel, m.Count)
			case "unsubscribe":
				if m.Count == 0 {
					return nil
				}
			}
		case *redis.Message:
			h.OnMessage(m.Channel, []byte(m.Payload))
		case *redis.Pong:
		default:
			corelog.Debugf("RedisBroker: ignoring unexpected pubsub reply %T", msg)
		}
	}
}

func (s *redisSession) Subscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	return s.ps.Subscribe(ctx, channels...)
}

func (s *redisSession) Unsubscribe(ctx context.Context, channels ...string) error {
	return s.ps.Unsubscribe(ctx, channels...)
}

func (s *redisSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ps.Close()
		s.broker.release(s)
	})
	return s.closeErr
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
