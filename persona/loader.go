package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// personaFile は、ペルソナファイル1件のスキーマです。
// フィールドはすべて必須で、未知のフィールドは拒否されます。
// 欠落を検出するため、ポインタで受けてから Persona へ変換します。
type personaFile struct {
	Name       *string   `json:"name"`
	Traits     *[]string `json:"traits"`
	VoiceStyle *string   `json:"voice_style"`
	Quirks     *string   `json:"quirks"`
	Expertise  *[]string `json:"expertise"`
	Greeting   *string   `json:"greeting"`
}

// Parse は、1件のペルソナ定義（JSON）を厳密に検証して読み込みます。
func Parse(data []byte) (*Persona, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f personaFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid persona file: %w", err)
	}

	missing := make([]string, 0, 6)
	if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
		missing = append(missing, "name")
	}
	if f.Traits == nil {
		missing = append(missing, "traits")
	}
	if f.VoiceStyle == nil {
		missing = append(missing, "voice_style")
	}
	if f.Quirks == nil {
		missing = append(missing, "quirks")
	}
	if f.Expertise == nil {
		missing = append(missing, "expertise")
	}
	if f.Greeting == nil {
		missing = append(missing, "greeting")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid persona file: missing fields: %s", strings.Join(missing, ", "))
	}

	return &Persona{
		ID:          IDFromName(*f.Name),
		DisplayName: strings.TrimSpace(*f.Name),
		Traits:      *f.Traits,
		VoiceStyle:  *f.VoiceStyle,
		Quirks:      *f.Quirks,
		Expertise:   *f.Expertise,
		Greeting:    *f.Greeting,
		Spontaneity: 1.0,
	}, nil
}

// LoadFS は、ファイルシステム上のディレクトリから *.json のペルソナ定義を読み込みます。
// 壊れたファイルは警告を出してスキップし、読み込み自体は中断しません。
func LoadFS(fsys fs.FS, dir string) ([]*Persona, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona dir %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	personas := make([]*Persona, 0, len(names))
	for _, name := range names {
		path := filepath.ToSlash(filepath.Join(dir, name))
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			slog.Warn("Skipping unreadable persona file", "file", name, "error", err)
			continue
		}
		p, err := Parse(data)
		if err != nil {
			slog.Warn("Skipping malformed persona file", "file", name, "error", err)
			continue
		}
		personas = append(personas, p)
		slog.Info("Loaded persona", "personaId", p.ID, "displayName", p.DisplayName)
	}

	return personas, nil
}

// LoadDir は、OSのディレクトリからペルソナ定義を読み込みます。
func LoadDir(dir string) ([]*Persona, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve persona dir %q: %w", dir, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("persona dir %q: %w", dir, err)
	}
	return LoadFS(os.DirFS(abs), ".")
}
