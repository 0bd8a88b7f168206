package chat

import (
	"log"
)

// Broadcaster 向注册表内除主体外的所有连接发送事件。
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a Broadcaster over the given registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// BroadcastExcept delivers ev to every currently-open connection other
// than the subject's own. 每个接收者都是尽力而为且非阻塞：单个对端的
// 发送失败不影响其他人，也不会上抛给调用方。
func (b *Broadcaster) BroadcastExcept(subjectID uint, ev Envelope) {
	for _, c := range b.registry.Snapshot() {
		if c.UserID() == subjectID {
			continue
		}
		if !c.TrySend(ev) {
			log.Printf("广播事件 %s 给用户 %d 失败，跳过该接收者", ev.Type, c.UserID())
		}
	}
}
