package generator

import (
	"fmt"
	"strings"
)

// systemPrompt は、ペルソナ定義から共通のシステム指示文を組み立てます。
// Gemini と OpenAI のバックエンドで同じ文面を使います。
func systemPrompt(in Input) string {
	p := in.Persona

	var b strings.Builder
	fmt.Fprintf(&b, "You are %q. Act strictly as this character.\n\n", p.DisplayName)
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "Personality traits: %s\n", strings.Join(p.Traits, ", "))
	}
	if p.VoiceStyle != "" {
		fmt.Fprintf(&b, "Voice and style: %s\n", p.VoiceStyle)
	}
	if p.Quirks != "" {
		fmt.Fprintf(&b, "Quirks: %s\n", p.Quirks)
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "You know a lot about: %s\n", strings.Join(p.Expertise, ", "))
	}
	if in.MaxTurns > 0 {
		fmt.Fprintf(&b, "The conversation is at turn %d of at most %d.\n", in.CurrentTurn, in.MaxTurns)
	}
	if len(in.Topics) > 0 {
		b.WriteString("Topics floating around, in case the chat needs a spark:\n")
		for _, t := range in.Topics {
			fmt.Fprintf(&b, "- %s: %s\n", t.Title, t.Summary)
		}
	}

	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	fmt.Fprintf(&b, `
STRICT OUTPUT RULES (MANDATORY):
- The conversation history marks each line with "(name)". These are INTERNAL markers.
- Output the message TEXT ONLY. No names, roles, labels, tags, or brackets.
- Never write anyone else's lines or continue the dialogue. Your reply is your line only.
- Exactly ONE utterance. No multiple turns, no stage directions.
- Keep it concise (about %d characters).

If unsure, produce a short, neutral line consistent with the character. Do NOT add any prefix.`, maxChars)

	return strings.TrimSpace(b.String())
}

// renderWindow は、会話履歴を1行ずつ "台詞 (名前)" の形式に整形します。
func renderWindow(in Input) []string {
	lines := make([]string, 0, len(in.Window))
	for _, u := range in.Window {
		lines = append(lines, fmt.Sprintf("%s (%s)", u.Text, in.displayName(u.SpeakerID)))
	}
	return lines
}

// defaultMaxChars は、設定がない場合の発話の目安文字数です。
const defaultMaxChars = 240

// oneLine は、改行と連続する空白を1つの空白にまとめます。
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// trimRunes は、文字列をrune単位で最大 n 文字に切り詰めます。
func trimRunes(s string, n int) string {
	r := []rune(s)
	if n > 0 && len(r) > n {
		return string(r[:n])
	}
	return s
}
