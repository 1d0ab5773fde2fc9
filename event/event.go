package event

import "time"

// Event は、セッションループに入力される1件のイベントです。
// ユーザー入力・ハートビート・シーン開始指示のいずれかで、
// Turn Scheduler はイベント1件を完全に処理してから次を受け付けます。
type Event interface {
	// When は、イベントの発生時刻を返します。
	// クールダウン判定と発話のタイムスタンプは、この時刻を基準にします。
	When() time.Time
}

// UserMessage は、ユーザーからの1行の入力です。
type UserMessage struct {
	Text string
	At   time.Time
}

func (e UserMessage) When() time.Time { return e.At }

// Tick は、ユーザー入力がなくても自発的な発話を可能にする定期ハートビートです。
type Tick struct {
	At time.Time
}

func (e Tick) When() time.Time { return e.At }

// SceneCommand は、指定したシーンの再生開始を要求します。
type SceneCommand struct {
	SceneID string
	At      time.Time
}

func (e SceneCommand) When() time.Time { return e.At }
