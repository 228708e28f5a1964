package dispose

import (
	"context"
)

// ServiceBase 标准服务基类
// Broker 与 Multiplexer 通过组合它获得 context 与一次性关闭语义
type ServiceBase struct {
	Dispose
}

// NewService 创建标准服务基类
func NewService(name string, parentCtx context.Context) *ServiceBase {
	s := &ServiceBase{}
	s.name = name
	s.SetCtx(parentCtx, s.onClose)
	return s
}

func (s *ServiceBase) onClose() error {
	Debugf("%s resources cleaned up", s.name)
	return nil
}

// GetName 获取服务名称
func (s *ServiceBase) GetName() string {
	return s.name
}

// Close 关闭服务，返回首个清理错误
func (s *ServiceBase) Close() error {
	return s.CloseWithError()
}
