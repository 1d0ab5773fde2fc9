package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Local は、外部サービスに依存しないテンプレートベースの Generator です。
// パターンに基づいて必ず1つの発話を返し、失敗しません。
// オフライン動作とテストの基盤になります。
type Local struct {
	rng *rand.Rand
}

// NewLocal は、シード付きの Local を生成します。
// 同じシードと同じ呼び出し順なら、出力は再現可能です。
func NewLocal(seed int64) *Local {
	return &Local{rng: rand.New(rand.NewSource(seed))}
}

var (
	greetWords = []string{"hello", "hi", "hey", "yo", "howdy", "morning", "evening"}

	greetTemplates = []string{
		"%s",
		"%s So, what's everyone up to?",
		"Oh hey! %s",
	}

	questionTemplates = []string{
		"Hmm, good question. If you ask me, it comes back to %s somehow.",
		"I could talk about %s all day, but short version: it depends.",
		"Honestly? My gut says yes. My %s side says ask me again later.",
	}

	riffTemplates = []string{
		"Ha, that reminds me of something about %s.",
		"See, this is why I always say: never underestimate %s.",
		"Can we circle back to %s at some point? No reason. Just vibes.",
		"I was literally just thinking about %s.",
	}

	topicTemplates = []string{
		"Did anyone catch that thing about %s? Wild.",
		"Completely unrelated, but: %s. Discuss.",
	}
)

// Generate は、直近のユーザー入力とペルソナ定義から発話を組み立てます。
func (l *Local) Generate(_ context.Context, in Input) (string, error) {
	p := in.Persona

	userText, hasUser := in.lastUserText()
	switch {
	case !hasUser && len(in.Window) == 0:
		// 会話がまだ始まっていないので挨拶する
		return fmt.Sprintf(l.pick(greetTemplates), p.Greeting), nil

	case hasUser && isGreeting(userText):
		return fmt.Sprintf(l.pick(greetTemplates), p.Greeting), nil

	case hasUser && strings.Contains(userText, "?"):
		return fmt.Sprintf(l.pick(questionTemplates), l.flavor(in)), nil

	case len(in.Topics) > 0 && l.rng.Intn(3) == 0:
		t := in.Topics[l.rng.Intn(len(in.Topics))]
		return fmt.Sprintf(l.pick(topicTemplates), t.Title), nil

	default:
		return fmt.Sprintf(l.pick(riffTemplates), l.flavor(in)), nil
	}
}

// pick は、テンプレート集から1つを選びます。
func (l *Local) pick(templates []string) string {
	return templates[l.rng.Intn(len(templates))]
}

// flavor は、ペルソナの得意分野か性格タグから言及する言葉を選びます。
func (l *Local) flavor(in Input) string {
	p := in.Persona
	if len(p.Expertise) > 0 {
		return p.Expertise[l.rng.Intn(len(p.Expertise))]
	}
	if len(p.Traits) > 0 {
		return p.Traits[l.rng.Intn(len(p.Traits))]
	}
	return "life in general"
}

// isGreeting は、テキストが挨拶で始まるかを判定します。
func isGreeting(text string) bool {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ",.!?")
	for _, w := range greetWords {
		if first == w {
			return true
		}
	}
	return false
}

var _ Generator = (*Local)(nil)
