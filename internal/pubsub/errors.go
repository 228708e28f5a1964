package pubsub

import (
	coreerrors "submux/internal/core/errors"
)

var (
	// ErrClosed Multiplexer 已关闭
	ErrClosed = coreerrors.New(coreerrors.CodeResourceClosed, "pubsub multiplexer is closed")
	// ErrReadyTimeout 等待物理订阅握手超时
	ErrReadyTimeout = coreerrors.New(coreerrors.CodeTimeout, "timed out waiting for subscription handshake")
)
