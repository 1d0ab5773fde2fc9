package turn

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/conversation"
	"github.com/kigurumiguy/friendforge/event"
	"github.com/kigurumiguy/friendforge/generator"
	"github.com/kigurumiguy/friendforge/message"
	"github.com/kigurumiguy/friendforge/persona"
	"github.com/kigurumiguy/friendforge/scene"
	"github.com/kigurumiguy/friendforge/topic"
)

// failureFiller は、生成に失敗したときにホストが場をつなぐ一言です。
// トランスクリプトには記録されず、バスにだけ流れます。
const failureFiller = "Ah— lost my train of thought. Where were we?"

// Config は、Turn Scheduler の調整可能なパラメータです。
// 自発的な発話の頻度は意図的に定数ではなく設定値になっています。
type Config struct {
	// HostID は、名指しがないときに必ず最初に応答するホストペルソナのIDです。
	HostID string

	// Cooldown は、自発的な再発話までに必要な経過時間です。
	Cooldown time.Duration

	// BanterMax は、1ラウンドで自発的に参加できる人数の上限です。
	// 実際の人数は 1〜BanterMax から抽選されます。
	BanterMax int

	// Window は、Response Generator に渡す直近の発話数です。
	Window int

	// GenTimeout は、1回の生成呼び出しのタイムアウトです。
	GenTimeout time.Duration

	// MaxChars は、発話1回あたりの目安の最大文字数です。
	MaxChars int

	// Seed は、自発的な発話の抽選に使う擬似乱数のシードです。
	// 同じシードと同じイベント列なら、選択は再現可能です。
	Seed int64
}

// withDefaults は、ゼロ値の項目を既定値で埋めた Config を返します。
func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.BanterMax <= 0 {
		c.BanterMax = 2
	}
	if c.Window <= 0 {
		c.Window = 10
	}
	if c.GenTimeout <= 0 {
		c.GenTimeout = 20 * time.Second
	}
	return c
}

// Scheduler は、1件のイベントを「誰が・どの順番で話すか」の決定に
// 変換し、そのまま生成と発話の追加まで駆動するコアコンポーネントです。
// 状態の変更はすべて conversation.State のメソッド経由で行います。
type Scheduler struct {
	cfg      Config
	registry *persona.Registry
	gen      generator.Generator
	player   *scene.Player
	bus      bus.Bus
	provider Provider
	topics   []*topic.Topic
	rng      *rand.Rand
}

// NewScheduler は、新しい Scheduler を生成します。
// provider と topics は省略可能です（nil 可）。
func NewScheduler(
	cfg Config,
	registry *persona.Registry,
	gen generator.Generator,
	player *scene.Player,
	b bus.Bus,
	provider Provider,
	topics []*topic.Topic,
) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	if _, err := registry.Get(cfg.HostID); err != nil {
		return nil, fmt.Errorf("host persona: %w", err)
	}

	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		gen:      gen,
		player:   player,
		bus:      b,
		provider: provider,
		topics:   topics,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// HandleEvent は、1件のイベントを完全に処理します。
// 選ばれたペルソナの生成呼び出しと発話の追加まで終えてから戻るため、
// 呼び出し側はこれを直列に呼ぶだけで発話順の全順序が保たれます。
func (s *Scheduler) HandleEvent(ctx context.Context, ev event.Event, st *conversation.State) (Selection, error) {
	switch e := ev.(type) {
	case event.SceneCommand:
		return s.handleSceneCommand(ctx, e, st)

	case event.UserMessage:
		// ユーザーの発話は、シーン中であってもコンテキストとして記録する
		st.Append(conversation.UserSpeakerID, e.Text, e.At)
		if st.Mode() == conversation.ModeSceneActive {
			return s.runScene(ctx, ev, st)
		}
		return s.handleUserMessage(ctx, e, st)

	case event.Tick:
		if st.Mode() == conversation.ModeSceneActive {
			return s.runScene(ctx, ev, st)
		}
		return s.handleTick(ctx, e, st)

	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
}

// handleSceneCommand は、シーン再生の開始要求を処理します。
// 未知のシーンや再生中の二重要求は拒否され、モードは変わりません。
func (s *Scheduler) handleSceneCommand(ctx context.Context, e event.SceneCommand, st *conversation.State) (Selection, error) {
	if st.Mode() == conversation.ModeSceneActive {
		return nil, fmt.Errorf("scene %q requested while another scene is active", e.SceneID)
	}
	if err := s.player.Start(e.SceneID, st); err != nil {
		return nil, fmt.Errorf("scene command rejected: %w", err)
	}

	slog.Info("Scene started", "sceneId", e.SceneID)
	// 冒頭の固定ビートは、追加イベントを待たずにこのパスで再生する
	return s.runScene(ctx, e, st)
}

// handleUserMessage は、名指しがあればその相手だけ、なければホストを
// 先頭に、グループチャット中は自発的な参加者を続けて発話させます。
func (s *Scheduler) handleUserMessage(ctx context.Context, e event.UserMessage, st *conversation.State) (Selection, error) {
	target, err := s.registry.DetectAddress(e.Text)
	if err != nil {
		// 存在しない相手への名指しはホスト既定へフォールバック
		slog.Warn("Direct address to unknown persona, falling back to host", "error", err)
	}

	var sel Selection
	if target != nil {
		sel = Selection{{PersonaID: target.ID, Reason: ReasonDirectAddress}}
	} else {
		sel = Selection{{PersonaID: s.cfg.HostID, Reason: ReasonHostDefault}}
		if st.Mode() == conversation.ModeGroupChat {
			exclude := map[string]bool{s.cfg.HostID: true}
			sel = append(sel, s.pickBanter(e.At, exclude, st)...)
		}
	}

	s.invoke(ctx, sel, st, e.At)
	return sel, nil
}

// handleTick は、ユーザー入力なしの自発的な発話を駆動します。
// ホストも名指しもなく、資格のある参加者がいなければ空のラウンドです。
func (s *Scheduler) handleTick(ctx context.Context, e event.Tick, st *conversation.State) (Selection, error) {
	if st.Mode() != conversation.ModeGroupChat {
		return nil, nil
	}

	sel := s.pickBanter(e.At, nil, st)
	s.invoke(ctx, sel, st, e.At)
	return sel, nil
}

// pickBanter は、自発的な発話者を重み付き抽選で選びます。
// クールダウン中のペルソナは候補から外れ、同一ラウンド内で
// 同じペルソナが二度選ばれることはありません。
func (s *Scheduler) pickBanter(now time.Time, exclude map[string]bool, st *conversation.State) Selection {
	var eligible []*persona.Persona
	for _, p := range s.registry.All() {
		if exclude[p.ID] {
			continue
		}
		if last, ok := st.LastSpokeAt(p.ID); ok && now.Sub(last) < s.cfg.Cooldown {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil
	}

	count := 1 + s.rng.Intn(s.cfg.BanterMax)
	if count > len(eligible) {
		count = len(eligible)
	}

	sel := make(Selection, 0, count)
	for i := 0; i < count; i++ {
		picked := s.drawWeighted(eligible)
		sel = append(sel, Speaker{PersonaID: eligible[picked].ID, Reason: ReasonSpontaneousBanter})
		eligible = append(eligible[:picked], eligible[picked+1:]...)
	}
	return sel
}

// drawWeighted は、spontaneity を重みとして1人分の添字を引きます。
func (s *Scheduler) drawWeighted(candidates []*persona.Persona) int {
	var total float64
	for _, p := range candidates {
		total += p.Spontaneity
	}

	r := s.rng.Float64() * total
	for i, p := range candidates {
		r -= p.Spontaneity
		if r < 0 {
			return i
		}
	}
	return len(candidates) - 1
}

// invoke は、選ばれたペルソナを選択順どおりに発話させます。
// 1人の生成失敗は警告とつなぎの一言になり、残りの発話は続行します。
func (s *Scheduler) invoke(ctx context.Context, sel Selection, st *conversation.State, at time.Time) {
	for _, sp := range sel {
		if err := s.speak(ctx, st, sp.PersonaID, at); err != nil {
			s.notifyFailure(sp.PersonaID, at, err)
		}
	}
}

// speak は、1人のペルソナの発話を生成してトランスクリプトに追加し、
// バスに配信します。失敗した場合、ターン番号は消費されません。
func (s *Scheduler) speak(ctx context.Context, st *conversation.State, personaID string, at time.Time) error {
	p, err := s.registry.Get(personaID)
	if err != nil {
		return err
	}

	in := generator.Input{
		Persona:  p,
		Window:   st.RecentWindow(s.cfg.Window),
		Names:    s.registry.Names(),
		Topics:   s.topics,
		MaxChars: s.cfg.MaxChars,
	}
	if s.provider != nil {
		in.CurrentTurn = s.provider.CurrentTurn()
		in.MaxTurns = s.provider.MaxTurns()
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenTimeout)
	defer cancel()

	text, err := s.gen.Generate(genCtx, in)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return generator.ErrEmptyResult
	}

	u := st.Append(p.ID, text, at)
	s.emit(u, p)
	return nil
}

// emit は、追加済みの発話をバスに流します。ラウンドの終わりを待たず、
// 発話が生まれた順にそのまま配信されます。
func (s *Scheduler) emit(u conversation.Utterance, p *persona.Persona) {
	if err := s.bus.Broadcast(&message.Message{
		SpeakerID:   p.ID,
		SpeakerName: p.DisplayName,
		Text:        u.Text,
		At:          u.At,
		Kind:        message.KindSay,
		Turn:        u.TurnIndex,
	}); err != nil {
		slog.Warn("Failed to broadcast utterance", "personaId", p.ID, "error", err)
	}
}

// notifyFailure は、生成失敗をソフトに表面化します。
// ホストのつなぎの一言をバスに流すだけで、トランスクリプトには何も
// 追加しません。失敗がターン番号を消費することはありません。
func (s *Scheduler) notifyFailure(personaID string, at time.Time, cause error) {
	slog.Warn("Generation failed, persona skips this round", "personaId", personaID, "error", cause)

	host, err := s.registry.Get(s.cfg.HostID)
	if err != nil {
		return
	}
	if err := s.bus.Broadcast(&message.Message{
		SpeakerID:   host.ID,
		SpeakerName: host.DisplayName,
		Text:        failureFiller,
		At:          at,
		Kind:        message.KindNotice,
	}); err != nil {
		slog.Warn("Failed to broadcast failure notice", "error", err)
	}
}

// runScene は、シーン再生中のイベントを Scene Player に委譲します。
func (s *Scheduler) runScene(ctx context.Context, ev event.Event, st *conversation.State) (Selection, error) {
	performed, err := s.player.HandleEvent(ctx, ev, st, &scenePerformer{s: s, st: st, at: ev.When()})

	sel := make(Selection, 0, len(performed))
	for _, id := range performed {
		sel = append(sel, Speaker{PersonaID: id, Reason: ReasonSceneCue})
	}
	return sel, err
}

// scenePerformer は、scene.Performer をこの Scheduler の発話機構に束縛します。
// シーン内の生成の意味論（タイムアウト、失敗時の扱い）は通常ラウンドと同一です。
type scenePerformer struct {
	s  *Scheduler
	st *conversation.State
	at time.Time
}

// Recite は、固定の台詞をその話者の発話として追加します。
func (sp *scenePerformer) Recite(_ context.Context, speakerID, line string) error {
	p, err := sp.s.registry.Get(speakerID)
	if err != nil {
		return err
	}
	u := sp.st.Append(p.ID, line, sp.at)
	sp.s.emit(u, p)
	return nil
}

// Improvise は、Response Generator に即興を生成させます。
// 生成失敗はここで通知まで済ませ、Player にはビートを進めさせます。
func (sp *scenePerformer) Improvise(ctx context.Context, speakerID string) error {
	if _, err := sp.s.registry.Get(speakerID); err != nil {
		return err
	}
	if err := sp.s.speak(ctx, sp.st, speakerID, sp.at); err != nil {
		sp.s.notifyFailure(speakerID, sp.at, err)
	}
	return nil
}

var _ scene.Performer = (*scenePerformer)(nil)
