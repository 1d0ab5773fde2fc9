package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsContiguousTurnIndexes(t *testing.T) {
	s := NewState(ModeGroupChat)
	now := time.Now()

	for i := 0; i < 5; i++ {
		u := s.Append("harper", "line", now.Add(time.Duration(i)*time.Second))
		assert.Equal(t, i, u.TurnIndex)
	}
	assert.Equal(t, 5, s.Len())
}

func TestLastSpokeAt(t *testing.T) {
	s := NewState(ModeGroupChat)
	now := time.Now()

	_, ok := s.LastSpokeAt("harper")
	assert.False(t, ok)

	s.Append("harper", "hello", now)
	at, ok := s.LastSpokeAt("harper")
	require.True(t, ok)
	assert.Equal(t, now, at)

	later := now.Add(time.Minute)
	s.Append("harper", "again", later)
	at, _ = s.LastSpokeAt("harper")
	assert.Equal(t, later, at)
}

func TestRecentWindow(t *testing.T) {
	s := NewState(ModeGroupChat)
	now := time.Now()
	s.Append("a", "one", now)
	s.Append("b", "two", now)
	s.Append("c", "three", now)

	w := s.RecentWindow(2)
	require.Len(t, w, 2)
	assert.Equal(t, "two", w[0].Text)
	assert.Equal(t, "three", w[1].Text)

	// ウィンドウより短いトランスクリプトは全件返す
	assert.Len(t, s.RecentWindow(10), 3)
	assert.Nil(t, s.RecentWindow(0))

	// 返り値はスナップショット。書き換えても状態には影響しない。
	w[0].Text = "mutated"
	assert.Equal(t, "two", s.RecentWindow(3)[1].Text)
}

func TestSceneLifecycleRestoresPriorMode(t *testing.T) {
	s := NewState(ModeIdle)

	s.EnterScene("campfire")
	assert.Equal(t, ModeSceneActive, s.Mode())

	ptr, ok := s.Scene()
	require.True(t, ok)
	assert.Equal(t, "campfire", ptr.SceneID)
	assert.Equal(t, 0, ptr.StepIndex)

	s.SetSceneWaiting(true)
	ptr, _ = s.Scene()
	assert.True(t, ptr.Waiting)

	s.AdvanceScene()
	ptr, _ = s.Scene()
	assert.Equal(t, 1, ptr.StepIndex)
	assert.False(t, ptr.Waiting, "advancing clears the waiting flag")

	s.ExitScene()
	assert.Equal(t, ModeIdle, s.Mode())
	_, ok = s.Scene()
	assert.False(t, ok)
}

func TestExitSceneDefaultsToGroupChat(t *testing.T) {
	s := NewState(ModeSceneActive)
	s.EnterScene("campfire")
	s.ExitScene()
	assert.Equal(t, ModeGroupChat, s.Mode())
}
