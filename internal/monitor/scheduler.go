package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

// RefreshFunc 一次刷新；ctx 不随切换取消
type RefreshFunc func(ctx context.Context, process domain.Process, spec domain.WindowSpec)

// Scheduler 每个视图只有一个刷新循环。
// Switch 先停止旧循环再启动新循环；已经发出的刷新不取消，晚到的响应照常生效。
type Scheduler struct {
	refresh RefreshFunc

	mu         sync.Mutex
	active     domain.WindowSpec
	process    domain.Process
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
	inflight   sync.WaitGroup
}

func NewScheduler(refresh RefreshFunc) *Scheduler {
	return &Scheduler{refresh: refresh}
}

// Switch 安装新的工序与 WindowSpec；返回时旧循环已退出，不会再触发旧间隔的刷新
func (s *Scheduler) Switch(ctx context.Context, process domain.Process, spec domain.WindowSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.active = spec
	s.process = process
	s.cancel = cancel
	s.done = done
	s.generation++

	go s.loop(loopCtx, done, process, spec)
}

// Stop 停止当前循环
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Wait 等待所有已发出的刷新结束
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Active 当前工序、WindowSpec 与切换代数
func (s *Scheduler) Active() (domain.Process, domain.WindowSpec, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process, s.active, s.generation
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}, process domain.Process, spec domain.WindowSpec) {
	defer close(done)

	interval := spec.Refresh
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.fire(ctx, process, spec)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.fire(ctx, process, spec)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, process domain.Process, spec domain.WindowSpec) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.refresh(context.WithoutCancel(ctx), process, spec)
	}()
}
