package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LineGenerate は、固定の台詞の代わりに Response Generator へ
// 即興を依頼する特別な台詞です。
const LineGenerate = "generate"

// ErrSceneNotFound は、指定されたIDのシーンが存在しないことを示します。
var ErrSceneNotFound = errors.New("scene not found")

// Beat は、シーンを構成する1拍です。話者と台詞（または即興指示）を持ち、
// WaitForUser が真の場合、この拍の実行前にユーザー入力を待ちます。
type Beat struct {
	SpeakerID   string
	Line        string
	WaitForUser bool
}

// Generate は、この拍が即興指示かどうかを返します。
func (b Beat) Generate() bool {
	return b.Line == LineGenerate
}

// Scene は、作者が台本として書いた不変のビート列です。
type Scene struct {
	ID    string
	Beats []Beat
}

type beatFile struct {
	Speaker     *string `json:"speaker"`
	Line        *string `json:"line"`
	WaitForUser bool    `json:"wait_for_user"`
}

type sceneFile struct {
	ID    *string    `json:"id"`
	Beats []beatFile `json:"beats"`
}

// Parse は、1件のシーン定義（JSON）を厳密に検証して読み込みます。
func Parse(data []byte) (*Scene, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f sceneFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid scene file: %w", err)
	}
	if f.ID == nil || strings.TrimSpace(*f.ID) == "" {
		return nil, fmt.Errorf("invalid scene file: missing id")
	}
	if len(f.Beats) == 0 {
		return nil, fmt.Errorf("invalid scene file: scene %q has no beats", *f.ID)
	}

	s := &Scene{ID: strings.TrimSpace(*f.ID), Beats: make([]Beat, 0, len(f.Beats))}
	for i, b := range f.Beats {
		if b.Speaker == nil || strings.TrimSpace(*b.Speaker) == "" {
			return nil, fmt.Errorf("invalid scene file: scene %q beat %d: missing speaker", s.ID, i)
		}
		if b.Line == nil || *b.Line == "" {
			return nil, fmt.Errorf("invalid scene file: scene %q beat %d: missing line", s.ID, i)
		}
		s.Beats = append(s.Beats, Beat{
			SpeakerID:   strings.TrimSpace(*b.Speaker),
			Line:        *b.Line,
			WaitForUser: b.WaitForUser,
		})
	}

	return s, nil
}

// LoadFS は、ディレクトリから *.json のシーン定義を読み込みます。
// 壊れたファイルは警告を出してスキップします。
func LoadFS(fsys fs.FS, dir string) ([]*Scene, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene dir %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	scenes := make([]*Scene, 0, len(names))
	for _, name := range names {
		path := filepath.ToSlash(filepath.Join(dir, name))
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			slog.Warn("Skipping unreadable scene file", "file", name, "error", err)
			continue
		}
		s, err := Parse(data)
		if err != nil {
			slog.Warn("Skipping malformed scene file", "file", name, "error", err)
			continue
		}
		scenes = append(scenes, s)
		slog.Info("Loaded scene", "sceneId", s.ID, "beats", len(s.Beats))
	}

	return scenes, nil
}

// LoadDir は、OSのディレクトリからシーン定義を読み込みます。
func LoadDir(dir string) ([]*Scene, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scene dir %q: %w", dir, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("scene dir %q: %w", dir, err)
	}
	return LoadFS(os.DirFS(abs), ".")
}

// Library は、IDで引ける読み取り専用のシーン集です。
type Library struct {
	scenes map[string]*Scene
}

// NewLibrary は、シーンの集合から Library を構築します。
// 同じIDが重複した場合は先勝ちで、後続は警告してスキップします。
func NewLibrary(scenes []*Scene) *Library {
	byID := make(map[string]*Scene, len(scenes))
	for _, s := range scenes {
		if _, exists := byID[s.ID]; exists {
			slog.Warn("Skipping duplicate scene id", "sceneId", s.ID)
			continue
		}
		byID[s.ID] = s
	}
	return &Library{scenes: byID}
}

// Get は、IDでシーンを引きます。
func (l *Library) Get(id string) (*Scene, error) {
	s, ok := l.scenes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSceneNotFound, id)
	}
	return s, nil
}

// Len は、登録されているシーンの数を返します。
func (l *Library) Len() int {
	return len(l.scenes)
}
