package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/mmcdole/gofeed"

	"github.com/kigurumiguy/friendforge/topic"
)

// summaryMaxChars は、要約をプロンプトに載せるときの上限文字数です。
const summaryMaxChars = 200

// RSSFetcher は topic.Fetcher のRSS実装です。
// 取得した見出しは、ペルソナたちの雑談の種として Response Generator に渡されます。
type RSSFetcher struct {
	url   string
	limit int
}

// NewRSSFetcher は新しい RSSFetcher を生成します。
// limit は取得する話題の上限数です。0以下の場合は無制限。
func NewRSSFetcher(url string, limit int) topic.Fetcher {
	return &RSSFetcher{url: url, limit: limit}
}

// Fetch はフィードを取得し、新しい順の []*topic.Topic に変換します。
func (f *RSSFetcher) Fetch(ctx context.Context) ([]*topic.Topic, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", f.url, err)
	}

	items := feed.Items
	sort.SliceStable(items, func(i, j int) bool {
		it, jt := items[i].PublishedParsed, items[j].PublishedParsed
		if it == nil || jt == nil {
			return i < j
		}
		return it.After(*jt)
	})

	topics := make([]*topic.Topic, 0, len(items))
	for i, item := range items {
		if f.limit > 0 && i >= f.limit {
			break
		}
		topics = append(topics, &topic.Topic{
			Title:     item.Title,
			Summary:   truncateRunes(stripHTML(item.Description), summaryMaxChars),
			SourceURL: item.Link,
		})
	}

	return topics, nil
}

var htmlTagRe = regexp.MustCompile("<[^>]*>")

// stripHTML は、文字列からHTMLタグを取り除きます。
func stripHTML(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

// truncateRunes は、文字列をrune単位で指定長に切り詰めます。
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if max > 0 && len(r) > max {
		return string(r[:max])
	}
	return s
}

var _ topic.Fetcher = (*RSSFetcher)(nil)
