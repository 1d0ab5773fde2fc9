package scene

import (
	"context"
	"log/slog"

	"github.com/kigurumiguy/friendforge/conversation"
	"github.com/kigurumiguy/friendforge/event"
)

// Performer は、Player がビートを実際の発話へ変換するために呼び出す
// インターフェースです。Turn Scheduler が実装し、発話の追加と配信の
// 意味論は通常のラウンドとまったく同じになります。
type Performer interface {
	// Recite は、台本に書かれた固定の台詞をその話者の発話として追加します。
	Recite(ctx context.Context, speakerID, line string) error

	// Improvise は、Response Generator に即興の発話を生成させます。
	// 生成失敗は Performer 側で処理済みのため、エラーは
	// 話者不明などビート自体を実行できない場合に限られます。
	Improvise(ctx context.Context, speakerID string) error
}

// Player は、作者が書いたシーンを決定的に再生する状態機械です。
// 再生位置は conversation.State のシーンポインタに置かれ、
// Player 自身は可変状態を持ちません。
type Player struct {
	lib             *Library
	maxBeatsPerPass int
}

// NewPlayer は、新しい Player を生成します。
// maxBeatsPerPass は、1回のスケジューリングで連続再生できるビート数の
// 上限で、壊れたシーンファイルによる暴走を防ぎます。
func NewPlayer(lib *Library, maxBeatsPerPass int) *Player {
	if maxBeatsPerPass <= 0 {
		maxBeatsPerPass = 32
	}
	return &Player{lib: lib, maxBeatsPerPass: maxBeatsPerPass}
}

// Start は、シーンの再生を開始します。
// 未知のシーンIDの場合はエラーを返し、状態には触れません。
func (p *Player) Start(sceneID string, st *conversation.State) error {
	if _, err := p.lib.Get(sceneID); err != nil {
		return err
	}
	st.EnterScene(sceneID)
	return nil
}

// HandleEvent は、シーン再生中のイベントを1件処理し、
// このパスで発話したビートの話者IDを順に返します。
//
// 固定台詞のビートは追加イベントなしで連続再生されます。
// waitForUser のビートに到達すると停止し、次の UserMessage で
// 同じビートから再開します（待機中の Tick や SceneCommand では進みません）。
// 末尾に到達するとシーンを終了し、再生前のモードへ戻します。
func (p *Player) HandleEvent(ctx context.Context, ev event.Event, st *conversation.State, perf Performer) ([]string, error) {
	ptr, ok := st.Scene()
	if !ok {
		return nil, nil
	}

	sc, err := p.lib.Get(ptr.SceneID)
	if err != nil {
		// ライブラリから消えたシーンを指している。終了扱いにする。
		slog.Warn("Active scene no longer in library, finishing", "sceneId", ptr.SceneID)
		st.ExitScene()
		return nil, nil
	}

	resumed := false
	if ptr.Waiting {
		if _, isUser := ev.(event.UserMessage); !isUser {
			return nil, nil
		}
		st.SetSceneWaiting(false)
		resumed = true
	}

	var performed []string
	for steps := 0; steps < p.maxBeatsPerPass; steps++ {
		ptr, _ = st.Scene()
		if ptr.StepIndex < 0 || ptr.StepIndex >= len(sc.Beats) {
			// 範囲外のポインタは Finished として扱う
			st.ExitScene()
			slog.Info("Scene finished", "sceneId", sc.ID)
			return performed, nil
		}

		beat := sc.Beats[ptr.StepIndex]
		if beat.WaitForUser && !resumed {
			st.SetSceneWaiting(true)
			return performed, nil
		}
		resumed = false

		if beat.Generate() {
			err = perf.Improvise(ctx, beat.SpeakerID)
		} else {
			err = perf.Recite(ctx, beat.SpeakerID, beat.Line)
		}
		if err != nil {
			slog.Warn("Skipping unplayable beat",
				"sceneId", sc.ID, "step", ptr.StepIndex, "speakerId", beat.SpeakerID, "error", err)
		} else {
			performed = append(performed, beat.SpeakerID)
		}
		st.AdvanceScene()
	}

	slog.Warn("Beats-per-pass guard hit, pausing scene", "sceneId", sc.ID, "max", p.maxBeatsPerPass)
	return performed, nil
}
