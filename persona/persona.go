package persona

import (
	"strings"
)

// Persona は、会話に参加するキャラクターの人格を定義します。
// 起動時に読み込まれた後は不変で、Response Generator に渡す
// プロンプトのベースとなります。
type Persona struct {
	// ID は、表示名から導出される安定した識別子です。
	ID          string   `json:"-"`
	DisplayName string   `json:"name"`
	Traits      []string `json:"traits"`
	VoiceStyle  string   `json:"voice_style"`
	Quirks      string   `json:"quirks"`
	Expertise   []string `json:"expertise"`
	Greeting    string   `json:"greeting"`

	// Spontaneity は、自発的な発話に選ばれやすさを表す重みです。
	// ペルソナファイル自体には含まれず、既定では一様（1.0）です。
	Spontaneity float64 `json:"-"`
}

// IDFromName は、表示名からペルソナIDを導出します。
// 小文字化し、空白をハイフンに置き換えます。
func IDFromName(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(id), "-")
}
