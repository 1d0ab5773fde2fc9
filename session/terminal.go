package session

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/kigurumiguy/friendforge/event"
)

// Terminal は、端末の標準入力をセッションのイベントに変換する
// 薄いフロントエンドです。出力側は renderer.Console が担います。
type Terminal struct {
	loop *Loop
	in   io.Reader
}

// NewTerminal は、新しい Terminal フロントエンドを生成します。
func NewTerminal(loop *Loop, in io.Reader) *Terminal {
	return &Terminal{loop: loop, in: in}
}

// Run は、入力を1行ずつ読み、イベントとして Post します。
// "/scene <id>" はシーン開始指示、"/quit" は終了です。
// 入力の終端（EOF）か /quit で戻ります。
func (t *Terminal) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/scene "):
			sceneID := strings.TrimSpace(strings.TrimPrefix(line, "/scene "))
			t.loop.Post(event.SceneCommand{SceneID: sceneID, At: time.Now()})
		default:
			t.loop.Post(event.UserMessage{Text: line, At: time.Now()})
		}
	}

	return scanner.Err()
}
