package turn

// Reason は、ペルソナが発話権を得た理由です。
type Reason string

const (
	// ReasonDirectAddress は、ユーザーが名指しで呼びかけたことを示します。
	ReasonDirectAddress Reason = "direct_address"
	// ReasonHostDefault は、名指しがないときのホストの既定応答です。
	ReasonHostDefault Reason = "host_default"
	// ReasonSpontaneousBanter は、クールダウンと重みに基づく自発的な参加です。
	ReasonSpontaneousBanter Reason = "spontaneous_banter"
	// ReasonSceneCue は、シーンの台本による指名です。
	ReasonSceneCue Reason = "scene_cue"
)

// Speaker は、このラウンドで発話権を得た1人のペルソナです。
type Speaker struct {
	PersonaID string
	Reason    Reason
}

// Selection は、1イベントに対して発話権を得たペルソナの順序付きリストです。
// 誰も発話しない「静かなラウンド」では空になります。
type Selection []Speaker

// IDs は、選ばれたペルソナIDを順序どおりに返します。
func (s Selection) IDs() []string {
	ids := make([]string, len(s))
	for i, sp := range s {
		ids[i] = sp.PersonaID
	}
	return ids
}

// Contains は、指定したIDが選択に含まれるかを返します。
func (s Selection) Contains(personaID string) bool {
	for _, sp := range s {
		if sp.PersonaID == personaID {
			return true
		}
	}
	return false
}
