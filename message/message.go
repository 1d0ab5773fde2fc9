package message

import (
	"time"
)

// Kind は、バスに流れるメッセージの種別を表す型です。
type Kind string

const (
	// KindSay は、ペルソナの通常の発話です。トランスクリプトにも記録されます。
	KindSay Kind = "say"
	// KindUser は、人間のユーザーからの入力です。
	KindUser Kind = "user"
	// KindSystem は、進行上のアナウンスなどのシステムメッセージです。
	KindSystem Kind = "system"
	// KindNotice は、生成失敗時などにホストが発する「つなぎ」の一言です。
	// トランスクリプトには記録されません。
	KindNotice Kind = "notice"
	// KindLog は、エンジン内部の警告ログです。
	KindLog Kind = "log"
)

// Message は、バスを流れる1件のメッセージです。
// フロントエンド（レンダラー）は、この形式だけを知っていればよく、
// 会話の状態そのものには触れません。
type Message struct {
	SpeakerID   string
	SpeakerName string
	Text        string
	At          time.Time
	Kind        Kind

	// Turn は、発話に割り当てられたターン番号です。
	// KindSay 以外のメッセージでは 0 のままです。
	Turn int
}

// Spoken は、このメッセージがターンを消費した発話かどうかを返します。
func (m *Message) Spoken() bool {
	return m.Kind == KindSay
}
