package turn

// Provider は、現在のターン情報を提供します。
// Response Generator のプロンプトは、会話の進み具合をこの
// インターフェース越しに参照し、具体的な実装（supervisor）を知りません。
type Provider interface {
	CurrentTurn() int
	MaxTurns() int
}
