package errors

// 预定义哨兵错误（用于 errors.Is 比较）
var (
	ErrInvalidParam   = New(CodeInvalidParam, "invalid parameter")
	ErrConfigError    = New(CodeConfigError, "configuration error")
	ErrResourceClosed = New(CodeResourceClosed, "resource is closed")
	ErrNotConfigured  = New(CodeNotConfigured, "not configured")
	ErrInternal       = New(CodeInternal, "internal error")
	ErrTimeout        = New(CodeTimeout, "operation timeout")
	ErrCancelled      = New(CodeCancelled, "operation cancelled")
	ErrUnavailable    = New(CodeUnavailable, "service unavailable")

	ErrConnectionError = New(CodeConnectionError, "connection error")
	ErrHandshakeFailed = New(CodeHandshakeFailed, "handshake failed")
	ErrListenerFailed  = New(CodeListenerFailed, "listener failed")
)

// IsClosed 检查是否为资源已关闭错误
func IsClosed(err error) bool {
	return IsCode(err, CodeResourceClosed)
}

// IsTimeout 检查是否为超时错误
func IsTimeout(err error) bool {
	return IsCode(err, CodeTimeout)
}

// IsRetryable 检查错误是否可重试
//
// 订阅循环只对连接类错误做重连，其余错误直接上抛
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeUnavailable, CodeConnectionError, CodeHandshakeFailed:
		return true
	default:
		return false
	}
}
