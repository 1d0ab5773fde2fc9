package topic

import "context"

// Topic は、自発的な掛け合いの種になる構造化された「話題」です。
// 出所（RSS、設定ファイルなど）に依存しない汎用的な形式です。
type Topic struct {
	// Title は、話題のタイトルや見出しです。
	Title string

	// Summary は、話題の短い要約です。
	Summary string

	// SourceURL は、話題の出所を示すURLです。
	SourceURL string
}

// Fetcher は、外部のデータソースから []*Topic を取得するためのインターフェースです。
type Fetcher interface {
	Fetch(ctx context.Context) ([]*Topic, error)
}
