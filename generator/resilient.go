package generator

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Resilient は、リモートの Generator をリトライ付きで包むラッパーです。
// 一時的なネットワークエラーやタイムアウトを、ラウンドを壊す前に
// 何度か吸収します。リトライを使い切ったら最後のエラーを返します。
type Resilient struct {
	inner     Generator
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewResilient は、最大 attempts 回試行するラッパーを生成します。
// 待ち時間は baseDelay から指数的に伸び、ジッタが加わります。
func NewResilient(inner Generator, attempts int, baseDelay time.Duration) *Resilient {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &Resilient{
		inner:     inner,
		attempts:  attempts,
		baseDelay: baseDelay,
		maxDelay:  10 * time.Second,
	}
}

// Generate は、成功するかリトライを使い切るまで内側の Generator を呼びます。
// コンテキストのキャンセルは即座に尊重します。
func (r *Resilient) Generate(ctx context.Context, in Input) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		text, err := r.inner.Generate(ctx, in)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// 呼び出し元のタイムアウト。待っても意味がない。
			return "", lastErr
		}
		if attempt == r.attempts {
			break
		}

		delay := r.backoff(attempt)
		slog.Warn("Generation attempt failed, retrying",
			"personaId", in.Persona.ID, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", lastErr
		case <-timer.C:
		}
	}

	return "", lastErr
}

// backoff は、attempt 回目の失敗後の待ち時間を返します。
func (r *Resilient) backoff(attempt int) time.Duration {
	delay := r.baseDelay << (attempt - 1)
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	// 0.5〜1.5倍のジッタ
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

var _ Generator = (*Resilient)(nil)
