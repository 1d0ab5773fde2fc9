package generator

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini は、Vertex AI 上の Gemini を使うリモート Generator です。
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini は、新しい Gemini クライアントを生成します。
func NewGemini(ctx context.Context, projectID, location, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("generator.NewGemini: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Generate は、会話履歴とペルソナ定義からプロンプトを組み立てて
// 1発話分のテキストを生成します。
func (g *Gemini) Generate(ctx context.Context, in Input) (string, error) {
	// 履歴を []*genai.Content に変換する。自分の過去の発話はモデル役として渡す。
	var contents []*genai.Content
	for _, u := range in.Window {
		role := genai.RoleUser
		if u.SpeakerID == in.Persona.ID {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: fmt.Sprintf("%s (%s)", u.Text, in.displayName(u.SpeakerID))}},
		})
	}
	if len(contents) == 0 {
		// 履歴なしで呼ばれた場合（シーンの冒頭など）は、挨拶の合図だけ渡す
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: fmt.Sprintf("The conversation is just starting. Say hello as %s.", in.Persona.DisplayName)}},
		})
	}

	var temp float32 = 0.7
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: 256,
		SystemInstruction: &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: systemPrompt(in)}},
		},
		// 自分の名前マーカーが出たら台本化しているのでストップ
		StopSequences: []string{
			fmt.Sprintf("(%s)", in.Persona.DisplayName),
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generator.Gemini.Generate: %w", err)
	}

	text := oneLine(extractText(resp))
	if text == "" {
		return "", ErrEmptyResult
	}

	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return trimRunes(text, maxChars), nil
}

// extractText は、レスポンスから最初の非空テキストを取り出します。
func extractText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 {
		return ""
	}
	for _, c := range res.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var _ Generator = (*Gemini)(nil)
