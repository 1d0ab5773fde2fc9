package configs

import (
	"embed"
)

// Defaults は、埋め込みの既定ペルソナとシーンです。
// --personas / --scenes でディレクトリが指定されない場合の
// フォールバックとして、通常のローダーと同じ検証を通して読み込まれます。
//
//go:embed personas/*.json scenes/*.json
var Defaults embed.FS
