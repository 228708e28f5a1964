// Package safe 提供安全的 Goroutine 管理
//
// 设计原则：
// 1. 所有 Goroutine 必须有 panic 恢复
// 2. 支持 Goroutine 计数和跟踪
// 3. 支持 context 取消
package safe

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
)

var globalManager = &manager{}

type manager struct {
	activeCount atomic.Int64 // 当前活跃 Goroutine 数量
	totalCount  atomic.Int64 // 累计创建的 Goroutine 数量
	panicCount  atomic.Int64 // panic 次数
}

// Stats Goroutine 统计信息
type Stats struct {
	Active     int64
	Total      int64
	PanicCount int64
}

// GetStats 获取统计信息
func GetStats() Stats {
	return Stats{
		Active:     globalManager.activeCount.Load(),
		Total:      globalManager.totalCount.Load(),
		PanicCount: globalManager.panicCount.Load(),
	}
}

func recoverAndLog(name string, r interface{}) {
	globalManager.panicCount.Add(1)
	corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, string(debug.Stack()))
}

// Go 安全启动 Goroutine（带 panic 恢复）
// name 用于日志标识
func Go(name string, fn func()) {
	GoWithCallback(name, fn, nil)
}

// GoWithCallback 带回调的安全 Goroutine
// onPanic 在发生 panic 时调用，用于自定义处理
func GoWithCallback(name string, fn func(), onPanic func(recovered interface{})) {
	globalManager.totalCount.Add(1)
	globalManager.activeCount.Add(1)

	go func() {
		defer func() {
			globalManager.activeCount.Add(-1)
			if r := recover(); r != nil {
				recoverAndLog(name, r)
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

// Call 同步执行 fn，把 panic 转成 error 返回
func Call(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			recoverAndLog(name, r)
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn()
}

// Pool Goroutine 池
type Pool struct {
	name   string
	active atomic.Int32
	queue  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool 创建 Goroutine 池
func NewPool(ctx context.Context, name string, maxWorkers int32, queueSize int32) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	poolCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		name:   name,
		queue:  make(chan func(), queueSize),
		ctx:    poolCtx,
		cancel: cancel,
	}

	for i := int32(0); i < maxWorkers; i++ {
		workerName := fmt.Sprintf("%s-worker-%d", name, i)
		p.wg.Add(1)
		Go(workerName, func() {
			defer p.wg.Done()
			p.work(workerName)
		})
	}

	return p
}

func (p *Pool) work(workerName string) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-p.queue:
			p.active.Add(1)
			func() {
				defer func() {
					p.active.Add(-1)
					if r := recover(); r != nil {
						recoverAndLog(workerName, r)
					}
				}()
				fn()
			}()
		}
	}
}

// Submit 提交任务到池，队列已满或池已关闭时返回 false
func (p *Pool) Submit(fn func()) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.queue <- fn:
		return true
	default:
		return false
	}
}

// SubmitWait 提交任务并等待队列有空位
// 池已关闭时总是返回错误，不会把任务放进无人消费的队列
func (p *Pool) SubmitWait(ctx context.Context, fn func()) error {
	if p.ctx.Err() != nil {
		return p.closedErr()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.closedErr()
	case p.queue <- fn:
		return nil
	}
}

func (p *Pool) closedErr() error {
	return coreerrors.Newf(coreerrors.CodeResourceClosed, "pool %s is closed", p.name)
}

// ActiveCount 获取活跃工作数
func (p *Pool) ActiveCount() int32 {
	return p.active.Load()
}

// Name 池名称
func (p *Pool) Name() string {
	return p.name
}

// Close 关闭池并等待工作 Goroutine 退出，未执行的任务被丢弃
func (p *Pool) Close() {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		if n := len(p.queue); n > 0 {
			corelog.Warnf("SafeGo[%s]: pool closed with %d pending tasks dropped", p.name, n)
		}
	})
}
