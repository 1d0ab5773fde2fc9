package renderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/message"
)

// Markdown は、セッションのトランスクリプトを1つのマークダウン
// ファイルとして書き出すレンダラーです。描画中はメッセージを
// 溜めるだけで、Finalize でまとめて書き出します。
type Markdown struct {
	outputDir string
	sessionID string
	startedAt time.Time

	mu    sync.Mutex
	inbox []*message.Message
}

// NewMarkdown は、outputDir に書き出す Markdown レンダラーを生成します。
func NewMarkdown(outputDir, sessionID string) *Markdown {
	return &Markdown{
		outputDir: outputDir,
		sessionID: sessionID,
		startedAt: time.Now(),
	}
}

// Render は、購読を開始してメッセージを溜めます。
func (r *Markdown) Render(b bus.Bus, wg *sync.WaitGroup) error {
	ch := b.Subscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for m := range ch {
			switch m.Kind {
			case message.KindSay, message.KindUser, message.KindNotice, message.KindSystem:
				r.mu.Lock()
				r.inbox = append(r.inbox, m)
				r.mu.Unlock()
			default:
				// エンジンログはトランスクリプトに残さない
			}
		}
	}()

	return nil
}

// Finalize は、溜めたトランスクリプトをファイルに書き出します。
func (r *Markdown) Finalize() error {
	r.mu.Lock()
	inbox := make([]*message.Message, len(r.inbox))
	copy(inbox, r.inbox)
	r.mu.Unlock()

	if len(inbox) == 0 {
		return nil
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	short := r.sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	slug := r.startedAt.Format("20060102-150405")
	path := filepath.Join(r.outputDir, fmt.Sprintf("%s-%s.md", slug, short))

	var b strings.Builder
	fmt.Fprintf(&b, "# FriendForge session %s\n\n", short)
	fmt.Fprintf(&b, "Started: %s\n\n---\n\n", r.startedAt.Format(time.RFC3339))
	for _, m := range inbox {
		switch m.Kind {
		case message.KindSystem:
			fmt.Fprintf(&b, "> %s\n\n", m.Text)
		case message.KindUser:
			fmt.Fprintf(&b, "**You**: %s\n\n", m.Text)
		default:
			fmt.Fprintf(&b, "**%s**: %s\n\n", m.SpeakerName, m.Text)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

var _ Renderer = (*Markdown)(nil)
