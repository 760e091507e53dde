package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/treasure"
)

// ErrHuntRunning 已有寻宝活动在进行
var ErrHuntRunning = errors.New("已有寻宝活动在进行中")

// maxHuntEvents 当前活动保留的事件条数
const maxHuntEvents = 100

// HuntFactory 每次运行创建一个新的寻宝活动
type HuntFactory func() *treasure.Hunt

// HuntState 寻宝活动的当前状态
type HuntState struct {
	Running   bool             `json:"running"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	Events    []treasure.Event `json:"events"`
	Last      *treasure.Result `json:"last,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// TreasureService 在后台运行寻宝活动，同一时间最多一个
type TreasureService struct {
	factory HuntFactory
	sink    treasure.EventSink
	logger  *zap.Logger

	mu      sync.Mutex
	state   HuntState
	cancel  context.CancelFunc
	done    chan struct{}
	baseCtx context.Context
}

// NewTreasureService 创建寻宝服务，sink 可以为 nil
func NewTreasureService(ctx context.Context, factory HuntFactory, sink treasure.EventSink, logger *zap.Logger) *TreasureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreasureService{
		factory: factory,
		sink:    sink,
		logger:  logger,
		baseCtx: ctx,
		state:   HuntState{Events: []treasure.Event{}},
	}
}

// Start 在后台开始一次寻宝，force 为 true 时跳过随机跳过的判断
func (s *TreasureService) Start(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Running {
		return ErrHuntRunning
	}

	hunt := s.factory()
	if force {
		hunt.SkipOdds = 0
	}
	hunt.SetSink(treasure.EventSinkFunc(s.record))

	ctx, cancel := context.WithCancel(s.baseCtx)
	started := time.Now()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = HuntState{Running: true, StartedAt: &started, Events: []treasure.Event{}, Last: s.state.Last}

	go s.run(ctx, hunt, s.done)
	return nil
}

func (s *TreasureService) run(ctx context.Context, hunt *treasure.Hunt, done chan struct{}) {
	defer close(done)

	result, err := hunt.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.state.Running = false
	s.state.Last = result
	s.state.LastError = ""
	if err != nil {
		s.state.LastError = err.Error()
		s.logger.Warn("寻宝活动异常结束", zap.Error(err))
	}
}

// record 保存事件并转发给外部接收者
func (s *TreasureService) record(e treasure.Event) {
	s.mu.Lock()
	s.state.Events = append(s.state.Events, e)
	if len(s.state.Events) > maxHuntEvents {
		s.state.Events = s.state.Events[len(s.state.Events)-maxHuntEvents:]
	}
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Publish(e)
	}
}

// Current 返回当前或最近一次活动的状态
func (s *TreasureService) Current() HuntState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	state.Events = append([]treasure.Event(nil), s.state.Events...)
	return state
}

// Stop 取消正在进行的活动并等待其结束，活动会先清理宝箱
func (s *TreasureService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait 等待当前活动结束，主要用于测试
func (s *TreasureService) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
