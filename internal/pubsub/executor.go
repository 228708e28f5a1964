package pubsub

import (
	"context"

	corelog "submux/internal/core/log"
	"submux/internal/core/safe"
)

// Executor 监听器回调的执行器
//
// Multiplexer 把每次投递作为一个任务提交给 Executor，
// 任务不会在订阅循环的 goroutine 上执行。
type Executor interface {
	Execute(task func())
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(task func())

// Execute 执行任务
func (f ExecutorFunc) Execute(task func()) { f(task) }

// InlineExecutor 在调用方 goroutine 上直接执行，仅用于测试
var InlineExecutor Executor = ExecutorFunc(func(task func()) { task() })

// GoExecutor 每个任务一个带 panic 恢复的 goroutine
func GoExecutor(name string) Executor {
	return ExecutorFunc(func(task func()) {
		safe.Go(name, task)
	})
}

// PoolExecutor 基于 safe.Pool 的有界执行器
//
// 队列满时 Execute 阻塞，背压会传递到订阅循环。
type PoolExecutor struct {
	pool *safe.Pool
}

// NewPoolExecutor 创建有界执行器
func NewPoolExecutor(ctx context.Context, name string, workers, queueSize int32) *PoolExecutor {
	return &PoolExecutor{pool: safe.NewPool(ctx, name, workers, queueSize)}
}

// Execute 提交任务，池关闭后任务被丢弃
func (e *PoolExecutor) Execute(task func()) {
	if err := e.pool.SubmitWait(context.Background(), task); err != nil {
		corelog.WithError(err).Warnf("PoolExecutor[%s]: task dropped", e.pool.Name())
	}
}

// Active 正在执行的任务数
func (e *PoolExecutor) Active() int32 {
	return e.pool.ActiveCount()
}

// Close 关闭执行器并等待工作 goroutine 退出
func (e *PoolExecutor) Close() error {
	e.pool.Close()
	return nil
}
