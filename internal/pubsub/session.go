package pubsub

import "context"

// Source 物理连接来源（连接池）
type Source interface {
	// Open 借出一个连接并创建新的物理订阅会话，必要时阻塞
	Open(ctx context.Context) (Session, error)
	// IsClosed 连接来源是否已永久关闭；关闭后订阅循环退出
	IsClosed() bool
}

// Session 一次物理订阅会话，绑定单个连接
//
// 每次重连都创建新的 Session，旧会话不再复用。
type Session interface {
	// Run 订阅给定频道并阻塞，直到会话结束（全部退订、连接断开或出错）
	// 全部退订导致的正常结束返回 nil
	Run(ctx context.Context, channels []string, h SessionHandler) error
	// Subscribe 在会话上追加订阅频道，可在 Run 之前调用
	Subscribe(ctx context.Context, channels ...string) error
	// Unsubscribe 退订频道；不传频道表示全部退订
	Unsubscribe(ctx context.Context, channels ...string) error
	// Close 释放连接，可重复调用
	Close() error
}

// SessionHandler 会话回调，在 Run 所在的 goroutine 中被调用
type SessionHandler interface {
	OnMessage(channel string, payload []byte)
	// OnSubscribe 服务端确认订阅了 channel，count 为当前会话订阅的频道总数
	OnSubscribe(channel string, count int)
}
