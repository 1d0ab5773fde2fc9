package turn

import (
	"context"
	"fmt"
)

// MutexManager は turn.Manager の実装です。
// バッファサイズ1のチャネルをセマフォとして使い、同時に1つの
// ラウンドだけが進行できるようにします。
type MutexManager struct {
	roundCh chan struct{}
}

// NewMutexManager は新しい MutexManager を生成します。
func NewMutexManager() Manager {
	return &MutexManager{
		roundCh: make(chan struct{}, 1),
	}
}

// Acquire はラウンドの実行権を取得します。
// 他のラウンドが進行中の場合、解放されるまでブロックします。
// コンテキストのキャンセルで待機を中断できます。
func (m *MutexManager) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire round: %w", ctx.Err())
	case m.roundCh <- struct{}{}:
		return nil
	}
}

// Release は保持している実行権を解放します。
// 取得していない状態で呼ばれても何もしません。
func (m *MutexManager) Release() {
	select {
	case <-m.roundCh:
	default:
	}
}

// コンパイル時に Manager インターフェースを実装していることを保証します。
var _ Manager = (*MutexManager)(nil)
