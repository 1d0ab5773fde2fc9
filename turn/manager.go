package turn

import (
	"context"
)

// Manager は、ラウンドの排他を管理します。
// セッションループはラウンドの開始前に Acquire し、終了後に Release
// することで、フロントエンドのゴルーチンが処理中のラウンドに
// 割り込めないことを保証します。
type Manager interface {
	Acquire(ctx context.Context) error
	Release()
}
