package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI は、OpenAI 互換のAPIを使うリモート Generator です。
// baseURL を指定すれば、互換エンドポイントにも接続できます。
type OpenAI struct {
	llm   llms.Model
	model string
}

// NewOpenAI は、新しい OpenAI クライアントを生成します。
func NewOpenAI(model, apiKey, baseURL string) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("generator.NewOpenAI: %w", err)
	}

	return &OpenAI{llm: llm, model: model}, nil
}

// Generate は、システム指示と会話履歴を1つのプロンプトに畳み込んで
// 1発話分のテキストを生成します。
func (o *OpenAI) Generate(ctx context.Context, in Input) (string, error) {
	var b strings.Builder
	b.WriteString(systemPrompt(in))
	b.WriteString("\n\nConversation so far:\n")
	lines := renderWindow(in)
	if len(lines) == 0 {
		b.WriteString("(the conversation is just starting)\n")
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nYour reply as %s:", in.Persona.DisplayName)

	resp, err := llms.GenerateFromSinglePrompt(ctx, o.llm, b.String(),
		llms.WithMaxTokens(256),
		llms.WithTemperature(0.7),
	)
	if err != nil {
		return "", fmt.Errorf("generator.OpenAI.Generate: %w", err)
	}

	text := oneLine(resp)
	if text == "" {
		return "", ErrEmptyResult
	}

	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return trimRunes(text, maxChars), nil
}

var _ Generator = (*OpenAI)(nil)
