package generator

import (
	"context"
	"errors"

	"github.com/kigurumiguy/friendforge/conversation"
	"github.com/kigurumiguy/friendforge/persona"
	"github.com/kigurumiguy/friendforge/topic"
)

// ErrEmptyResult は、生成結果が空だったことを示します。
// Turn Scheduler はこれを生成失敗として扱います。
var ErrEmptyResult = errors.New("generator returned an empty result")

// Generator は、1人のペルソナの1回分の発話を生成します。
// ローカルのテンプレート実装とリモートのAI実装があり、
// Turn Scheduler は両者をこのインターフェース越しに同一視します。
type Generator interface {
	Generate(ctx context.Context, in Input) (string, error)
}

// Input は、1回の生成に渡されるコンテキストです。
type Input struct {
	// Persona は、これから発話するペルソナです。
	Persona *persona.Persona

	// Window は、ラウンド内のそれまでの発話を含む直近のトランスクリプトです。
	Window []conversation.Utterance

	// Names は、speakerId から表示名への対応表です。
	// ユーザーの発話は conversation.UserSpeakerID で引けないため、
	// 見つからないIDは "User" として整形されます。
	Names map[string]string

	// Topics は、雑談の種になる話題です（空でも構いません）。
	Topics []*topic.Topic

	// CurrentTurn / MaxTurns は、会話の進み具合です。MaxTurns が 0 の場合は無制限。
	CurrentTurn int
	MaxTurns    int

	// MaxChars は、発話1回あたりの目安の最大文字数です。
	MaxChars int
}

// displayName は、speakerId を人間が読める名前に変換します。
func (in Input) displayName(speakerID string) string {
	if name, ok := in.Names[speakerID]; ok {
		return name
	}
	if speakerID == conversation.UserSpeakerID {
		return "User"
	}
	return speakerID
}

// lastUserText は、ウィンドウ内の最後のユーザー発話を返します。
func (in Input) lastUserText() (string, bool) {
	for i := len(in.Window) - 1; i >= 0; i-- {
		if in.Window[i].SpeakerID == conversation.UserSpeakerID {
			return in.Window[i].Text, true
		}
	}
	return "", false
}
