package renderer

import (
	"fmt"
	"io"
	"sync"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/message"
)

// NewConsole は、out に書き出す ConsoleRenderer を生成します。
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Console は、バスに流れる発話を端末へ逐次出力するレンダラーです。
type Console struct {
	out io.Writer
}

// Render は、購読を開始して発話を1件ずつ出力します。
func (c *Console) Render(b bus.Bus, wg *sync.WaitGroup) error {
	ch := b.Subscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for m := range ch {
			switch m.Kind {
			case message.KindSystem:
				fmt.Fprintf(c.out, "[System] %s\n", m.Text)
			case message.KindLog:
				fmt.Fprintf(c.out, "[Engine] %s\n", m.Text)
			case message.KindUser:
				// ユーザーが打った行はすでに端末にある
			default:
				fmt.Fprintf(c.out, "%s: %s\n", m.SpeakerName, m.Text)
			}
		}
	}()

	return nil
}

// Finalize は Renderer インターフェースを満たすためのメソッドです。
// Console では特に何も行いません。
func (c *Console) Finalize() error {
	return nil
}

var _ Renderer = (*Console)(nil)
