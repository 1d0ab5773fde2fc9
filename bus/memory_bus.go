package bus

import (
	"fmt"
	"sync"

	"github.com/kigurumiguy/friendforge/message"
)

// subscriberBuffer は、各購読者チャネルのバッファサイズです。
// 発話のたびにブロードキャストされるため、レンダラーの描画が
// 追いつかない場合に備えて余裕を持たせています。
const subscriberBuffer = 32

// MemoryBus は bus.Bus インターフェースのインメモリ実装です。
// 購読者ごとのチャネルを保持し、ブロードキャストされたメッセージを
// すべての購読者に配送します。
type MemoryBus struct {
	subscribers []chan *message.Message
	mu          sync.RWMutex
	closed      bool
}

// NewMemoryBus は新しい MemoryBus を生成します。
func NewMemoryBus() Bus {
	return &MemoryBus{
		subscribers: make([]chan *message.Message, 0),
	}
}

// Broadcast はメッセージをすべての購読者に配送します。
// ノンブロッキングで、購読者のバッファが一杯の場合そのメッセージはドロップされます。
func (b *MemoryBus) Broadcast(m *message.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- m:
		default:
			// 受信が追いついていない購読者にはこのメッセージを届けない
		}
	}

	return nil
}

// Subscribe は新しい購読者を追加し、受信用のチャネルを返します。
func (b *MemoryBus) Subscribe() <-chan *message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *message.Message, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}

	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Close はバスを閉じ、すべての購読者チャネルをクローズします。
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

// コンパイル時に Bus インターフェースを実装していることを保証します。
var _ Bus = (*MemoryBus)(nil)
