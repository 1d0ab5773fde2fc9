package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harperJSON = `{
  "name": "Harper",
  "traits": ["warm", "curious"],
  "voice_style": "casual and upbeat",
  "quirks": "makes up words when excited",
  "expertise": ["music", "cooking"],
  "greeting": "Hey hey! Harper here."
}`

func mustParse(t *testing.T, data string) *Persona {
	t.Helper()
	p, err := Parse([]byte(data))
	require.NoError(t, err)
	return p
}

func TestParse(t *testing.T) {
	p := mustParse(t, harperJSON)
	assert.Equal(t, "harper", p.ID)
	assert.Equal(t, "Harper", p.DisplayName)
	assert.Equal(t, []string{"warm", "curious"}, p.Traits)
	assert.Equal(t, 1.0, p.Spontaneity)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte(`{
	  "name": "Milo", "traits": [], "voice_style": "dry", "quirks": "",
	  "expertise": [], "greeting": "hi", "mood": "sleepy"
	}`))
	assert.Error(t, err)
}

func TestParseRejectsMissingField(t *testing.T) {
	_, err := Parse([]byte(`{"name": "Milo", "traits": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing fields")
}

func TestIDFromName(t *testing.T) {
	assert.Equal(t, "dj-breeze", IDFromName("  DJ Breeze "))
}

func TestLoadDirSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "harper.json"), []byte(harperJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not json`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0644))

	personas, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, "harper", personas[0].ID)
}

func testRegistry(t *testing.T, weights map[string]float64) *Registry {
	t.Helper()
	personas := []*Persona{
		{ID: "harper", DisplayName: "Harper", Spontaneity: 1.0},
		{ID: "milo", DisplayName: "Milo", Spontaneity: 1.0},
		{ID: "dj-breeze", DisplayName: "DJ Breeze", Spontaneity: 1.0},
	}
	r, err := NewRegistry(personas, weights)
	require.NoError(t, err)
	return r
}

func TestNewRegistryRequiresPersonas(t *testing.T) {
	_, err := NewRegistry(nil, nil)
	assert.ErrorIs(t, err, ErrNoPersonas)
}

func TestNewRegistryRejectsDuplicateIDs(t *testing.T) {
	_, err := NewRegistry([]*Persona{
		{ID: "harper", DisplayName: "Harper"},
		{ID: "harper", DisplayName: "harper"},
	}, nil)
	assert.Error(t, err)
}

func TestRegistrySpontaneityOverride(t *testing.T) {
	r := testRegistry(t, map[string]float64{"milo": 3.5})
	milo, err := r.Get("milo")
	require.NoError(t, err)
	assert.Equal(t, 3.5, milo.Spontaneity)
}

func TestDetectAddress(t *testing.T) {
	r := testRegistry(t, nil)

	t.Run("display name as a word", func(t *testing.T) {
		p, err := r.DetectAddress("hey harper, what do you think?")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "harper", p.ID)
	})

	t.Run("multi-word display name", func(t *testing.T) {
		p, err := r.DetectAddress("Is dj breeze around?")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "dj-breeze", p.ID)
	})

	t.Run("at-mention", func(t *testing.T) {
		p, err := r.DetectAddress("@Milo your turn!")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "milo", p.ID)
	})

	t.Run("no substring false positive", func(t *testing.T) {
		p, err := r.DetectAddress("the harpers were a strange family")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("unknown at-mention", func(t *testing.T) {
		_, err := r.DetectAddress("@ghost are you there?")
		assert.ErrorIs(t, err, ErrUnknownAddress)
	})

	t.Run("no address", func(t *testing.T) {
		p, err := r.DetectAddress("hello everyone!")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
