// Package metrics 提供订阅复用层的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"submux/internal/pubsub"
)

// DefaultNamespace 默认指标前缀
const DefaultNamespace = "submux"

var _ pubsub.Observer = (*Collector)(nil)

// Collector 订阅复用层指标，满足 pubsub.Observer 接口
type Collector struct {
	resubscribes     prometheus.Counter
	sessionFailures  prometheus.Counter
	ready            prometheus.Gauge
	channels         prometheus.Gauge
	messagesReceived prometheus.Counter
	deliveries       prometheus.Counter
	dropped          *prometheus.CounterVec
	listenerFailures prometheus.Counter
}

// NewCollector 创建并注册指标；reg 为 nil 时使用默认注册表
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(reg)

	c := &Collector{
		resubscribes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resubscribes_total",
			Help:      "Number of completed physical subscription handshakes, the first one included",
		}),
		sessionFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Number of physical subscriptions that ended with an error",
		}),
		ready: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "1 while a physical subscription is live and handshaken",
		}),
		channels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Number of channels with at least one listener",
		}),
		messagesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received from the broker",
		}),
		deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Listener invocations submitted to the executor",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages discarded without delivery, by reason",
		}, []string{"reason"}),
		listenerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Listener invocations that returned an error or panicked",
		}),
	}
	// 预先创建已知原因的序列，未发生丢弃时也导出 0
	for _, reason := range []string{pubsub.DropReasonPaused, pubsub.DropReasonClosed} {
		c.dropped.WithLabelValues(reason)
	}
	return c
}

// Resubscribed 记录一次握手完成
func (c *Collector) Resubscribed() {
	c.resubscribes.Inc()
	c.ready.Set(1)
}

// SessionEnded 记录物理订阅结束
func (c *Collector) SessionEnded(err error) {
	c.ready.Set(0)
	if err != nil {
		c.sessionFailures.Inc()
	}
}

// ChannelsChanged 更新频道数量
func (c *Collector) ChannelsChanged(n int) {
	c.channels.Set(float64(n))
}

// MessageReceived 记录收到一条消息及其投递次数
func (c *Collector) MessageReceived(deliveries int) {
	c.messagesReceived.Inc()
	c.deliveries.Add(float64(deliveries))
}

// MessageDropped 记录丢弃的消息
func (c *Collector) MessageDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	c.dropped.WithLabelValues(reason).Inc()
}

// ListenerFailed 记录监听器失败
func (c *Collector) ListenerFailed() {
	c.listenerFailures.Inc()
}
