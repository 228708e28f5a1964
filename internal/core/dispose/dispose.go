package dispose

import (
	"context"
	"fmt"
	"sync"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	ResourceName string
	Err          error
}

func (e *DisposeError) Error() string {
	if e.ResourceName != "" {
		return fmt.Sprintf("cleanup resource[%s] handler[%d] failed: %v", e.ResourceName, e.HandlerIndex, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

func (e *DisposeError) Unwrap() error {
	return e.Err
}

// DisposeResult 清理结果
type DisposeResult struct {
	Errors         []*DisposeError
	ActualDisposal bool // 本次调用是否实际执行了释放
}

func (r *DisposeResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *DisposeResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	return fmt.Sprintf("dispose cleanup failed with %d errors", len(r.Errors))
}

// Dispose 资源生命周期管理
//
// 持有一个可取消的 context；Close 只生效一次：先取消 context，
// 再按注册的逆序执行清理处理器。父 context 取消时自动 Close。
type Dispose struct {
	mu            sync.Mutex
	closed        bool
	name          string
	ctx           context.Context
	cancel        context.CancelFunc
	stopWatch     func() bool
	cleanHandlers []func() error
	errors        []*DisposeError
}

// NewDispose 创建并初始化 Dispose
func NewDispose(parent context.Context, onClose func() error) *Dispose {
	d := &Dispose{}
	d.SetCtx(parent, onClose)
	return d
}

func (c *Dispose) Ctx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *Dispose) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetCtx 绑定父 context 和关闭回调，只能调用一次
func (c *Dispose) SetCtx(parent context.Context, onClose func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil {
		Warn("ctx already set")
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	if onClose != nil {
		c.cleanHandlers = append(c.cleanHandlers, onClose)
	}
	c.ctx, c.cancel = context.WithCancel(parent)
	c.stopWatch = context.AfterFunc(parent, func() {
		if result := c.Close(); result.HasErrors() {
			Errorf("Context cancellation cleanup failed: %v", result.Error())
		}
	})
}

// AddCleanHandler 添加清理处理器；已关闭时立即执行
func (c *Dispose) AddCleanHandler(f func() error) {
	c.mu.Lock()
	if !c.closed {
		c.cleanHandlers = append(c.cleanHandlers, f)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if err := f(); err != nil {
		Errorf("Late cleanup handler failed: %v", err)
	}
}

// Close 关闭并返回清理结果，重复调用返回首次的错误且不再执行处理器
func (c *Dispose) Close() *DisposeResult {
	c.mu.Lock()
	if c.closed {
		errs := c.errors
		c.mu.Unlock()
		return &DisposeResult{Errors: errs}
	}
	c.closed = true
	if c.stopWatch != nil {
		c.stopWatch()
	}
	if c.cancel != nil {
		c.cancel()
	}
	handlers := make([]func() error, len(c.cleanHandlers))
	copy(handlers, c.cleanHandlers)
	c.cleanHandlers = nil
	name := c.name
	c.mu.Unlock()

	// 处理器在锁外执行，允许其回调 IsClosed/Ctx
	result := &DisposeResult{ActualDisposal: true}
	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i](); err != nil {
			result.Errors = append(result.Errors, &DisposeError{HandlerIndex: i, ResourceName: name, Err: err})
			Errorf("Cleanup handler[%d] of %s failed: %v", i, name, err)
		}
	}

	c.mu.Lock()
	c.errors = result.Errors
	c.mu.Unlock()
	return result
}

// CloseWithError 关闭并以 error 形式返回首个清理错误
func (c *Dispose) CloseWithError() error {
	result := c.Close()
	if result.HasErrors() {
		return result.Errors[0].Err
	}
	return nil
}

// GetErrors 获取清理过程中的错误
func (c *Dispose) GetErrors() []*DisposeError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}
