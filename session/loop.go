package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/conversation"
	"github.com/kigurumiguy/friendforge/event"
	"github.com/kigurumiguy/friendforge/message"
	"github.com/kigurumiguy/friendforge/turn"
)

// eventBuffer は、フロントエンドからのイベント待ち行列の長さです。
const eventBuffer = 16

// Loop は、1つの会話セッションを駆動する単一スレッドのイベントループです。
// conversation.State を単独で所有し、イベントを1件ずつ完全に処理する
// ことで、発話順とターン番号の全順序を保証します。
// 複数のセッションは、それぞれが独立した Loop を持つだけで並走できます。
type Loop struct {
	id      string
	state   *conversation.State
	sched   *turn.Scheduler
	bus     bus.Bus
	manager turn.Manager
	tick    time.Duration
	events  chan event.Event
}

// NewLoop は、新しいセッションループを生成します。
// tick が 0 以下の場合、ハートビート（自発的な発話の契機）は無効になります。
func NewLoop(
	state *conversation.State,
	sched *turn.Scheduler,
	b bus.Bus,
	manager turn.Manager,
	tick time.Duration,
) *Loop {
	return &Loop{
		id:      uuid.NewString(),
		state:   state,
		sched:   sched,
		bus:     b,
		manager: manager,
		tick:    tick,
		events:  make(chan event.Event, eventBuffer),
	}
}

// ID は、このセッションの識別子を返します。
func (l *Loop) ID() string {
	return l.id
}

// Post は、フロントエンドからのイベントを待ち行列に積みます。
// ノンブロッキングで、行列が一杯の場合イベントは破棄されます。
func (l *Loop) Post(ev event.Event) {
	select {
	case l.events <- ev:
	default:
		slog.Warn("Event queue full, dropping event", "session", l.id, "event", ev)
	}
}

// Run は、イベントループを開始し、コンテキストが取り消されるまで
// ブロックします。1件のイベントの処理（選ばれた全員の生成と発話の
// 追加）が終わるまで、次のイベントには手を付けません。
func (l *Loop) Run(ctx context.Context) error {
	var tickCh <-chan time.Time
	if l.tick > 0 {
		ticker := time.NewTicker(l.tick)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.events:
			l.handle(ctx, ev)
		case at := <-tickCh:
			l.handle(ctx, event.Tick{At: at})
		}
	}
}

// handle は、1件のイベントを排他付きで処理します。
func (l *Loop) handle(ctx context.Context, ev event.Event) {
	if err := l.manager.Acquire(ctx); err != nil {
		return
	}
	defer l.manager.Release()

	// ユーザー入力はフロントエンド向けにも流す（トランスクリプトへの
	// 追加は Scheduler が行う）
	if um, ok := ev.(event.UserMessage); ok {
		if err := l.bus.Broadcast(&message.Message{
			SpeakerID:   conversation.UserSpeakerID,
			SpeakerName: "You",
			Text:        um.Text,
			At:          um.At,
			Kind:        message.KindUser,
		}); err != nil {
			slog.Warn("Failed to broadcast user message", "session", l.id, "error", err)
		}
	}

	sel, err := l.sched.HandleEvent(ctx, ev, l.state)
	if err != nil {
		slog.Warn("Round finished with error", "session", l.id, "error", err)
		return
	}
	if len(sel) > 0 {
		slog.Debug("Round complete", "session", l.id, "speakers", sel.IDs())
	}
}
