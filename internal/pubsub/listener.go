package pubsub

import (
	"fmt"
	"reflect"

	coreerrors "submux/internal/core/errors"
)

// Listener 消息监听器
//
// 监听器的值本身即订阅凭证：Unsubscribe 按 == 比较移除，
// 因此动态类型必须可比较（通常是指针）。返回的错误只会被记录日志。
type Listener interface {
	OnMessage(channel, message []byte) error
}

// funcListener 以指针身份包装普通函数
type funcListener struct {
	name string
	fn   func(channel, message []byte) error
}

func (l *funcListener) OnMessage(channel, message []byte) error {
	return l.fn(channel, message)
}

func (l *funcListener) String() string {
	if l.name != "" {
		return l.name
	}
	return fmt.Sprintf("listener(%p)", l)
}

// NewListener 把函数包装为 Listener，每次调用得到一个新的身份
func NewListener(fn func(channel, message []byte) error) Listener {
	return &funcListener{fn: fn}
}

// NewNamedListener 同 NewListener，name 用于日志
func NewNamedListener(name string, fn func(channel, message []byte) error) Listener {
	return &funcListener{name: name, fn: fn}
}

func validateListener(l Listener) error {
	if l == nil {
		return coreerrors.New(coreerrors.CodeInvalidParam, "listener is nil")
	}
	// 按动态值判断，接口字段里藏着切片或 map 的结构体同样不可作为 map 键
	if !reflect.ValueOf(l).Comparable() {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "listener of type %T is not comparable", l)
	}
	return nil
}

func describeListener(l Listener) string {
	if s, ok := l.(fmt.Stringer); ok {
		return s.String()
	}
	if reflect.ValueOf(l).Kind() == reflect.Pointer {
		return fmt.Sprintf("%T(%p)", l, l)
	}
	return fmt.Sprintf("%T", l)
}
