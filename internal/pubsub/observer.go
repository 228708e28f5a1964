package pubsub

// 消息丢弃原因
const (
	DropReasonPaused = "paused"
	DropReasonClosed = "closed"
)

// Observer 运行状态观察者，metrics.Collector 实现了该接口
type Observer interface {
	Resubscribed()
	SessionEnded(err error)
	ChannelsChanged(n int)
	MessageReceived(deliveries int)
	MessageDropped(reason string)
	ListenerFailed()
}

type nopObserver struct{}

func (nopObserver) Resubscribed()         {}
func (nopObserver) SessionEnded(error)    {}
func (nopObserver) ChannelsChanged(int)   {}
func (nopObserver) MessageReceived(int)   {}
func (nopObserver) MessageDropped(string) {}
func (nopObserver) ListenerFailed()       {}
