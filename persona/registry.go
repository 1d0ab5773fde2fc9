package persona

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrNoPersonas は、利用可能なペルソナが1人もいないことを示します。
	// 起動時にこれが返された場合、セッションは開始できません。
	ErrNoPersonas = errors.New("no personas available")

	// ErrUnknownAddress は、ユーザーが "@名前" で存在しないペルソナを
	// 指名したことを示します。ホストへのフォールバックに使われます。
	ErrUnknownAddress = errors.New("addressed persona not found")
)

// Registry は、読み込まれたペルソナを保持する読み取り専用の台帳です。
// 起動時に一度だけ構築され、以後変更されません。
type Registry struct {
	personas []*Persona
	byID     map[string]*Persona
}

// NewRegistry は、ペルソナの集合から Registry を構築します。
// weights で ID ごとの spontaneity 重みを上書きできます（nil 可）。
func NewRegistry(personas []*Persona, weights map[string]float64) (*Registry, error) {
	if len(personas) == 0 {
		return nil, ErrNoPersonas
	}

	byID := make(map[string]*Persona, len(personas))
	for _, p := range personas {
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		if w, ok := weights[p.ID]; ok && w > 0 {
			p.Spontaneity = w
		} else if p.Spontaneity <= 0 {
			p.Spontaneity = 1.0
		}
		byID[p.ID] = p
	}

	return &Registry{personas: personas, byID: byID}, nil
}

// All は、登録順のペルソナ一覧を返します。返り値のスライスはコピーです。
func (r *Registry) All() []*Persona {
	out := make([]*Persona, len(r.personas))
	copy(out, r.personas)
	return out
}

// Len は、登録されているペルソナの数を返します。
func (r *Registry) Len() int {
	return len(r.personas)
}

// Get は、ID でペルソナを引きます。
func (r *Registry) Get(id string) (*Persona, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("persona with id %q not found", id)
	}
	return p, nil
}

// ByDisplayName は、表示名の大文字小文字を無視した一致でペルソナを引きます。
func (r *Registry) ByDisplayName(name string) (*Persona, bool) {
	name = strings.TrimSpace(name)
	for _, p := range r.personas {
		if strings.EqualFold(p.DisplayName, name) {
			return p, true
		}
	}
	return nil, false
}

// Names は、speakerId から表示名への対応表を返します。
// Response Generator が会話履歴を整形するときに使います。
func (r *Registry) Names() map[string]string {
	names := make(map[string]string, len(r.personas))
	for _, p := range r.personas {
		names[p.ID] = p.DisplayName
	}
	return names
}

// DetectAddress は、テキストが特定のペルソナを指名しているかを判定します。
// "@名前" 形式、または表示名の単語単位の一致（大文字小文字無視）を
// 指名として扱い、複数が該当する場合は登録順で最初の1人を返します。
// "@名前" が誰にも一致しない場合は ErrUnknownAddress を返します。
func (r *Registry) DetectAddress(text string) (*Persona, error) {
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "@") {
			continue
		}
		name := strings.TrimFunc(field[1:], func(c rune) bool {
			return !unicode.IsLetter(c) && !unicode.IsDigit(c)
		})
		if name == "" {
			continue
		}
		if p, ok := r.byID[IDFromName(name)]; ok {
			return p, nil
		}
		if p, ok := r.ByDisplayName(name); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownAddress, name)
	}

	for _, p := range r.personas {
		if containsWord(text, p.DisplayName) {
			return p, nil
		}
	}

	return nil, nil
}

// containsWord は、text が word を単語として含むかを大文字小文字を
// 無視して判定します。word は空白を含む複数語でも構いません。
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	lowerText := strings.ToLower(text)
	lowerWord := strings.ToLower(word)

	for start := 0; ; {
		i := strings.Index(lowerText[start:], lowerWord)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(lowerWord)

		before := i == 0 || isBoundary(rune(lowerText[i-1]))
		after := end == len(lowerText) || isBoundary(rune(lowerText[end]))
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isBoundary(c rune) bool {
	return !unicode.IsLetter(c) && !unicode.IsDigit(c)
}
