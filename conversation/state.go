package conversation

import (
	"time"
)

// UserSpeakerID は、人間のユーザーの発話に使う話者IDです。
// ペルソナIDと衝突しないよう、ペルソナ側の予約語として扱います。
const UserSpeakerID = "user"

// Mode は、会話の動作モードを表す型です。
type Mode string

const (
	// ModeIdle は、ホストだけが応答する静かなモードです。
	ModeIdle Mode = "idle"
	// ModeGroupChat は、自発的な掛け合いが有効なモードです。
	ModeGroupChat Mode = "group_chat"
	// ModeSceneActive は、台本（シーン）の再生中であることを示します。
	ModeSceneActive Mode = "scene_active"
)

// Utterance は、トランスクリプトに記録される1件の発話です。
// TurnIndex は会話全体で単調に、欠番なく1ずつ増えます。
type Utterance struct {
	SpeakerID string
	Text      string
	At        time.Time
	TurnIndex int
}

// ScenePointer は、再生中のシーンと現在のビート位置を指します。
// Waiting は、waitForUser のビートでユーザー入力を待っている状態を表します。
type ScenePointer struct {
	SceneID   string
	StepIndex int
	Waiting   bool
}

// State は、1つの会話セッションの唯一の可変状態です。
// セッションループが単独で所有し、すべての変更はこの型のメソッドを
// 経由します。ループは一度に1イベントしか処理しないため、
// 意図的にロックを持ちません。
type State struct {
	transcript []Utterance
	lastSpoke  map[string]time.Time
	mode       Mode
	prevMode   Mode
	scene      *ScenePointer
	nextTurn   int
}

// NewState は、指定した初期モードで空の会話状態を生成します。
func NewState(initial Mode) *State {
	return &State{
		lastSpoke: make(map[string]time.Time),
		mode:      initial,
	}
}

// Append は、発話をトランスクリプトの末尾に追加します。
// 次のターン番号を割り当て、話者の lastSpokeAt を更新します。
// ターン番号が消費されるのはこのメソッドの中だけです。
func (s *State) Append(speakerID, text string, at time.Time) Utterance {
	u := Utterance{
		SpeakerID: speakerID,
		Text:      text,
		At:        at,
		TurnIndex: s.nextTurn,
	}
	s.nextTurn++
	s.transcript = append(s.transcript, u)
	s.lastSpoke[speakerID] = at
	return u
}

// Len は、トランスクリプトの長さを返します。
func (s *State) Len() int {
	return len(s.transcript)
}

// LastSpokeAt は、指定した話者が最後に発話した時刻を返します。
func (s *State) LastSpokeAt(speakerID string) (time.Time, bool) {
	at, ok := s.lastSpoke[speakerID]
	return at, ok
}

// RecentWindow は、直近 n 件の発話をトランスクリプト順で返します。
// 返り値は常にコピーで、内部状態への別名にはなりません。
func (s *State) RecentWindow(n int) []Utterance {
	if n <= 0 || len(s.transcript) == 0 {
		return nil
	}
	start := len(s.transcript) - n
	if start < 0 {
		start = 0
	}
	out := make([]Utterance, len(s.transcript)-start)
	copy(out, s.transcript[start:])
	return out
}

// Mode は、現在の動作モードを返します。
func (s *State) Mode() Mode {
	return s.mode
}

// SetMode は、動作モードを切り替えます。
func (s *State) SetMode(m Mode) {
	s.mode = m
}

// EnterScene は、シーン再生を開始し、復帰先として現在のモードを記憶します。
func (s *State) EnterScene(sceneID string) {
	if s.mode != ModeSceneActive {
		s.prevMode = s.mode
	}
	s.mode = ModeSceneActive
	s.scene = &ScenePointer{SceneID: sceneID}
}

// Scene は、再生中のシーンへのポインタを返します。
func (s *State) Scene() (ScenePointer, bool) {
	if s.scene == nil {
		return ScenePointer{}, false
	}
	return *s.scene, true
}

// AdvanceScene は、シーンのビート位置を1つ進めます。
func (s *State) AdvanceScene() {
	if s.scene == nil {
		return
	}
	s.scene.StepIndex++
	s.scene.Waiting = false
}

// SetSceneWaiting は、現在のビートでユーザー入力を待つかどうかを設定します。
func (s *State) SetSceneWaiting(waiting bool) {
	if s.scene == nil {
		return
	}
	s.scene.Waiting = waiting
}

// ExitScene は、シーン再生を終了し、再生前のモードへ戻します。
// 復帰先が不明な場合は GroupChat に戻します。
func (s *State) ExitScene() {
	s.scene = nil
	if s.prevMode == "" || s.prevMode == ModeSceneActive {
		s.mode = ModeGroupChat
		return
	}
	s.mode = s.prevMode
}
