package supervisor

import (
	"context"
	"sync"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/turn"
)

// Supervisor は、会話の発話数を監視し、上限に達したら停止信号を送ります。
// 上限 0 は無制限を意味し、その場合は数えるだけです。
type Supervisor struct {
	maxTurns   int
	turnCount  int
	bus        bus.Bus
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewSupervisor は、新しい Supervisor を生成します。
func NewSupervisor(maxTurns int, b bus.Bus, cancelFunc context.CancelFunc) *Supervisor {
	return &Supervisor{
		maxTurns:   maxTurns,
		bus:        b,
		cancelFunc: cancelFunc,
	}
}

// Start は、バスの購読を開始します。
// ペルソナの発話だけを数え、システムメッセージやログは数えません。
func (s *Supervisor) Start() {
	ch := s.bus.Subscribe()

	go func() {
		for msg := range ch {
			if !msg.Spoken() {
				continue
			}

			s.mu.Lock()
			s.turnCount++
			if s.maxTurns > 0 && s.turnCount >= s.maxTurns {
				s.cancelFunc()
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}()
}

// CurrentTurn は、これまでの発話数を返します。
func (s *Supervisor) CurrentTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

// MaxTurns は、発話数の上限を返します。0 は無制限です。
func (s *Supervisor) MaxTurns() int {
	// maxTurns は不変なのでロックは不要
	return s.maxTurns
}

// コンパイル時に turn.Provider を実装していることを保証します。
var _ turn.Provider = (*Supervisor)(nil)
