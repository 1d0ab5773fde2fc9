package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig は、リモート生成バックエンドの接続設定です。
// APIキーは設定ファイルには置かず、環境変数から渡します。
type GeneratorConfig struct {
	// Backend は "gemini" か "openai" です。--mode api のときだけ使われます。
	Backend string `yaml:"backend"`
	Model   string `yaml:"model"`
	// Project / Location は Gemini（Vertex AI）用です。
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	// BaseURL は OpenAI 互換エンドポイント用です。
	BaseURL string `yaml:"base_url"`
}

// Config は、エンジンの調整可能なパラメータ一式です。
// 自発的な発話の頻度やクールダウンは、隠れた定数ではなく
// すべてここに集約されています。
type Config struct {
	Host               string             `yaml:"host"`
	CooldownSeconds    int                `yaml:"cooldown_seconds"`
	BanterMax          int                `yaml:"banter_max"`
	TickSeconds        int                `yaml:"tick_seconds"`
	Window             int                `yaml:"window"`
	GenTimeoutSeconds  int                `yaml:"gen_timeout_seconds"`
	MaxBeatsPerPass    int                `yaml:"max_beats_per_pass"`
	MaxChars           int                `yaml:"max_chars"`
	Seed               int64              `yaml:"seed"`
	Turns              int                `yaml:"turns"`
	TopicsFeed         string             `yaml:"topics_feed"`
	TopicsLimit        int                `yaml:"topics_limit"`
	Spontaneity        map[string]float64 `yaml:"spontaneity"`
	Generator          GeneratorConfig    `yaml:"generator"`
}

// Default は、既定値で埋めた Config を返します。
func Default() Config {
	return Config{
		CooldownSeconds:   30,
		BanterMax:         2,
		TickSeconds:       15,
		Window:            10,
		GenTimeoutSeconds: 20,
		MaxBeatsPerPass:   32,
		MaxChars:          240,
		TopicsLimit:       5,
		Generator: GeneratorConfig{
			Backend: "gemini",
			Model:   "gemini-2.5-flash-lite",
		},
	}
}

// Load は、YAMLファイルを既定値の上に重ねて読み込みます。
// path が空の場合は既定値のみを返します。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Cooldown は、クールダウンを time.Duration で返します。
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// TickInterval は、ハートビートの間隔を返します。0 は無効を意味します。
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// GenTimeout は、1回の生成のタイムアウトを返します。
func (c Config) GenTimeout() time.Duration {
	return time.Duration(c.GenTimeoutSeconds) * time.Second
}
