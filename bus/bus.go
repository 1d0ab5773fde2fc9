package bus

import (
	"github.com/kigurumiguy/friendforge/message"
)

// Bus は、発話やシステムメッセージの配送責務を持ちます。
// セッションループが Broadcast し、レンダラーや監視役が Subscribe します。
type Bus interface {
	Broadcast(m *message.Message) error
	Subscribe() <-chan *message.Message
	Close()
}
