package turn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/conversation"
	"github.com/kigurumiguy/friendforge/event"
	"github.com/kigurumiguy/friendforge/generator"
	"github.com/kigurumiguy/friendforge/message"
	"github.com/kigurumiguy/friendforge/persona"
	"github.com/kigurumiguy/friendforge/scene"
)

// scriptedGen は、ペルソナごとに成功・失敗を台本どおりに返す Generator です。
type scriptedGen struct {
	fail  map[string]error
	calls int
}

func (g *scriptedGen) Generate(_ context.Context, in generator.Input) (string, error) {
	g.calls++
	if err := g.fail[in.Persona.ID]; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s reply %d", in.Persona.ID, g.calls), nil
}

type fixture struct {
	sched *Scheduler
	state *conversation.State
	gen   *scriptedGen
	msgs  <-chan *message.Message
}

func newFixture(t *testing.T, cfg Config, mode conversation.Mode, ids ...string) *fixture {
	t.Helper()

	personas := make([]*persona.Persona, 0, len(ids))
	for _, id := range ids {
		personas = append(personas, &persona.Persona{ID: id, DisplayName: titleCase(id), Spontaneity: 1.0})
	}
	reg, err := persona.NewRegistry(personas, nil)
	require.NoError(t, err)

	lib := scene.NewLibrary([]*scene.Scene{
		{ID: "intro", Beats: []scene.Beat{
			{SpeakerID: ids[0], Line: "Scripted opening."},
			{SpeakerID: ids[len(ids)-1], Line: scene.LineGenerate},
		}},
	})

	b := bus.NewMemoryBus()
	t.Cleanup(b.Close)

	gen := &scriptedGen{fail: map[string]error{}}
	sched, err := NewScheduler(cfg, reg, gen, scene.NewPlayer(lib, 32), b, nil, nil)
	require.NoError(t, err)

	return &fixture{
		sched: sched,
		state: conversation.NewState(mode),
		gen:   gen,
		msgs:  b.Subscribe(),
	}
}

func titleCase(id string) string {
	return string(id[0]-('a'-'A')) + id[1:]
}

func drain(msgs <-chan *message.Message) []*message.Message {
	var out []*message.Message
	for {
		select {
		case m := <-msgs:
			out = append(out, m)
		default:
			return out
		}
	}
}

var base = time.Unix(1_700_000_000, 0)

func defaultConfig(host string) Config {
	return Config{
		HostID:    host,
		Cooldown:  30 * time.Second,
		BanterMax: 2,
		Window:    10,
		Seed:      42,
	}
}

func TestDirectAddressSelectsNamedPersonaAlone(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo", "sage")

	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "Milo, what do you make of this?", At: base}, f.state)
	require.NoError(t, err)

	require.Len(t, sel, 1)
	assert.Equal(t, "milo", sel[0].PersonaID)
	assert.Equal(t, ReasonDirectAddress, sel[0].Reason)

	// ユーザー発話 + milo の発話で2件
	assert.Equal(t, 2, f.state.Len())
}

func TestUnknownAddressFallsBackToHost(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeIdle, "harper", "milo")

	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "@ghost you there?", At: base}, f.state)
	require.NoError(t, err)

	require.Len(t, sel, 1)
	assert.Equal(t, "harper", sel[0].PersonaID)
	assert.Equal(t, ReasonHostDefault, sel[0].Reason)
}

func TestIdleModeHostOnly(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeIdle, "harper", "milo", "sage")

	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "anyone around?", At: base}, f.state)
	require.NoError(t, err)

	require.Len(t, sel, 1)
	assert.Equal(t, "harper", sel[0].PersonaID)
}

func TestGroupChatHostFirstThenBanter(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo", "sage", "juniper")

	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "Hey everyone, I'm stuck", At: base}, f.state)
	require.NoError(t, err)

	require.NotEmpty(t, sel)
	assert.Equal(t, "harper", sel[0].PersonaID)
	assert.Equal(t, ReasonHostDefault, sel[0].Reason)
	assert.LessOrEqual(t, len(sel), 3, "host plus at most BanterMax banter entries")

	seen := map[string]bool{"harper": true}
	for _, sp := range sel[1:] {
		assert.Equal(t, ReasonSpontaneousBanter, sp.Reason)
		assert.False(t, seen[sp.PersonaID], "no persona selected twice in one round")
		seen[sp.PersonaID] = true
	}

	// 発話した全員分トランスクリプトが伸びている（ユーザー分 +1）
	assert.Equal(t, len(sel)+1, f.state.Len())
}

func TestBanterIsDeterministicUnderSeed(t *testing.T) {
	run := func() []Selection {
		f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat,
			"harper", "milo", "sage", "juniper", "breeze")

		var sels []Selection
		ev := event.UserMessage{Text: "what a day", At: base}
		sel, err := f.sched.HandleEvent(context.Background(), ev, f.state)
		require.NoError(t, err)
		sels = append(sels, sel)

		for i := 1; i <= 3; i++ {
			at := base.Add(time.Duration(i) * time.Minute)
			sel, err := f.sched.HandleEvent(context.Background(), event.Tick{At: at}, f.state)
			require.NoError(t, err)
			sels = append(sels, sel)
		}
		return sels
	}

	assert.Equal(t, run(), run(), "same seed and same event sequence must reproduce the same selections")
}

func TestCooldownBlocksReselection(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo")

	// milo が base 時点で発話した状態を作る
	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "Milo, say something", At: base}, f.state)
	require.NoError(t, err)
	require.Equal(t, "milo", sel[0].PersonaID)

	// クールダウン内の Tick では milo は候補外、harper だけが候補
	sel, err = f.sched.HandleEvent(context.Background(),
		event.Tick{At: base.Add(10 * time.Second)}, f.state)
	require.NoError(t, err)
	for _, sp := range sel {
		assert.NotEqual(t, "milo", sp.PersonaID)
	}
}

func TestTickWithNobodyEligibleIsQuiet(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo")

	_, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "Milo, hello", At: base}, f.state)
	require.NoError(t, err)
	_, err = f.sched.HandleEvent(context.Background(),
		event.Tick{At: base.Add(time.Second)}, f.state)
	require.NoError(t, err)

	// 全員がクールダウン中の Tick は静かなラウンドになる
	lenBefore := f.state.Len()
	sel, err := f.sched.HandleEvent(context.Background(),
		event.Tick{At: base.Add(2 * time.Second)}, f.state)
	require.NoError(t, err)
	assert.Empty(t, sel)
	assert.Equal(t, lenBefore, f.state.Len())
}

func TestTickInIdleModeIsQuiet(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeIdle, "harper", "milo")

	sel, err := f.sched.HandleEvent(context.Background(), event.Tick{At: base}, f.state)
	require.NoError(t, err)
	assert.Empty(t, sel)
}

func TestGenerationFailureDoesNotConsumeTurnIndex(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo")
	f.gen.fail["harper"] = errors.New("backend down")

	// harper（ホスト）が失敗し、milo のみが発話するラウンド
	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "Hey everyone", At: base}, f.state)
	require.NoError(t, err)
	require.Equal(t, "harper", sel[0].PersonaID)
	require.True(t, sel.Contains("milo"), "milo must still be selected for banter")

	// ユーザー(0) と milo(1)。harper の失敗が欠番を作らない。
	require.Equal(t, 2, f.state.Len())
	w := f.state.RecentWindow(10)
	assert.Equal(t, 0, w[0].TurnIndex)
	assert.Equal(t, conversation.UserSpeakerID, w[0].SpeakerID)
	assert.Equal(t, 1, w[1].TurnIndex)
	assert.Equal(t, "milo", w[1].SpeakerID)

	// つなぎの一言はバスにだけ流れる
	var notice *message.Message
	for _, m := range drain(f.msgs) {
		if m.Kind == message.KindNotice {
			notice = m
		}
	}
	require.NotNil(t, notice, "host filler notice expected on the bus")
	assert.Equal(t, "harper", notice.SpeakerID)
}

func TestSceneCommandDrivesSceneCues(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo")

	sel, err := f.sched.HandleEvent(context.Background(),
		event.SceneCommand{SceneID: "intro", At: base}, f.state)
	require.NoError(t, err)

	require.Len(t, sel, 2)
	for _, sp := range sel {
		assert.Equal(t, ReasonSceneCue, sp.Reason)
	}
	// 固定台詞 + 即興の2発話。シーンは走り切って元のモードへ。
	assert.Equal(t, 2, f.state.Len())
	assert.Equal(t, conversation.ModeGroupChat, f.state.Mode())

	w := f.state.RecentWindow(10)
	assert.Equal(t, "Scripted opening.", w[0].Text)
}

func TestSceneCommandRejectedForUnknownScene(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo")

	_, err := f.sched.HandleEvent(context.Background(),
		event.SceneCommand{SceneID: "nope", At: base}, f.state)
	require.Error(t, err)
	assert.ErrorIs(t, err, scene.ErrSceneNotFound)
	assert.Equal(t, conversation.ModeGroupChat, f.state.Mode())
	assert.Equal(t, 0, f.state.Len())
}

func TestUserMessageDuringSceneGoesToPlayer(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo")

	// waitForUser を含むシーンを別途用意する
	lib := scene.NewLibrary([]*scene.Scene{
		{ID: "pause", Beats: []scene.Beat{
			{SpeakerID: "harper", Line: "Before the pause."},
			{SpeakerID: "milo", Line: "After the pause.", WaitForUser: true},
		}},
	})
	var err error
	f.sched.player = scene.NewPlayer(lib, 32)

	_, err = f.sched.HandleEvent(context.Background(),
		event.SceneCommand{SceneID: "pause", At: base}, f.state)
	require.NoError(t, err)
	require.Equal(t, conversation.ModeSceneActive, f.state.Mode())

	// シーン中の UserMessage は通常のルールでは処理されない
	sel, err := f.sched.HandleEvent(context.Background(),
		event.UserMessage{Text: "Milo, ignore the script!", At: base.Add(time.Second)}, f.state)
	require.NoError(t, err)

	require.Len(t, sel, 1)
	assert.Equal(t, "milo", sel[0].PersonaID)
	assert.Equal(t, ReasonSceneCue, sel[0].Reason)

	// harper の台詞、ユーザー入力、milo の台詞の3件
	w := f.state.RecentWindow(10)
	require.Len(t, w, 3)
	assert.Equal(t, "After the pause.", w[len(w)-1].Text)
	assert.Equal(t, conversation.ModeGroupChat, f.state.Mode())
}

func TestTurnIndexesAreStrictlyIncreasingAcrossRounds(t *testing.T) {
	f := newFixture(t, defaultConfig("harper"), conversation.ModeGroupChat, "harper", "milo", "sage")

	events := []event.Event{
		event.UserMessage{Text: "hello all", At: base},
		event.Tick{At: base.Add(time.Minute)},
		event.UserMessage{Text: "Sage, thoughts?", At: base.Add(2 * time.Minute)},
		event.SceneCommand{SceneID: "intro", At: base.Add(3 * time.Minute)},
	}
	for _, ev := range events {
		_, err := f.sched.HandleEvent(context.Background(), ev, f.state)
		require.NoError(t, err)
	}

	w := f.state.RecentWindow(1000)
	for i, u := range w {
		assert.Equal(t, i, u.TurnIndex, "turn indexes must be contiguous from zero")
	}
}
