package renderer

import (
	"sync"

	"github.com/kigurumiguy/friendforge/bus"
)

// Renderer は、会話のレンダリングを行うコンポーネントが満たすべきインターフェースです。
type Renderer interface {
	// Render は、バスの購読を開始し、セッション中の描画処理を行います。
	Render(b bus.Bus, wg *sync.WaitGroup) error

	// Finalize は、セッション終了後の後始末を行います。
	// トランスクリプトのファイル書き出しなどを想定しています。
	Finalize() error
}
