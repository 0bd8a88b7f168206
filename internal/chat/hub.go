package chat

import (
	"context"
	"log"
)

// PresenceStore 把在线/离线转换镜像到持久层（users.is_online 及 Redis）。
// 写失败只记录日志，不影响连接生命周期。
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID uint) error
	MarkOffline(ctx context.Context, userID uint) error
	// Touch 续期用户的易失在线记录；心跳对每个幸存连接周期性调用，
	// 保证带 TTL 的镜像键在连接存活期间不过期。
	Touch(ctx context.Context, userID uint) error
}

// Hub 负责连接的生命周期：注册表的登记/注销，以及随之而来的
// 在线状态落库和 user_online / user_offline 广播。
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	presence    PresenceStore
}

// NewHub creates a Hub with its own registry and broadcaster.
func NewHub(presence PresenceStore) *Hub {
	registry := NewRegistry()
	return &Hub{
		registry:    registry,
		broadcaster: NewBroadcaster(registry),
		presence:    presence,
	}
}

// Registry exposes the underlying connection table.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register installs the connection, evicting and closing any previous
// connection for the same user, then emits the online transition.
func (h *Hub) Register(ctx context.Context, c Conn) {
	if prev := h.registry.Register(c); prev != nil {
		log.Printf("用户 %d 已有连接，关闭旧连接并注册新连接", c.UserID())
		prev.Close()
	}
	log.Printf("客户端已注册: UserID %d", c.UserID())

	if err := h.presence.MarkOnline(ctx, c.UserID()); err != nil {
		log.Printf("标记用户 %d 在线失败: %v", c.UserID(), err)
	}
	h.broadcaster.BroadcastExcept(c.UserID(), UserOnline(c.UserID()))
}

// Unregister removes the connection if it is still the registered one
// and emits the offline transition. 已被新连接替换的旧连接只做传输关闭，
// 不产生离线副作用。
func (h *Hub) Unregister(ctx context.Context, c Conn) {
	if h.registry.Remove(c) {
		c.Close()
		log.Printf("客户端已注销: UserID %d", c.UserID())
		h.notifyOffline(ctx, c.UserID())
		return
	}
	// 连接已被替换或已注销，仅确保传输关闭
	c.Close()
}

// notifyOffline 执行注销后的副作用：持久在线标记清除与离线广播。
func (h *Hub) notifyOffline(ctx context.Context, userID uint) {
	if err := h.presence.MarkOffline(ctx, userID); err != nil {
		log.Printf("标记用户 %d 离线失败: %v", userID, err)
	}
	h.broadcaster.BroadcastExcept(userID, UserOffline(userID))
}

// DeliverTo sends the envelope to the user's live connection if present
// and open. 返回 false 表示用户不在本实例在线或投递失败。
func (h *Hub) DeliverTo(userID uint, ev Envelope) bool {
	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	if !c.TrySend(ev) {
		log.Printf("投递事件 %s 给用户 %d 失败", ev.Type, userID)
		return false
	}
	return true
}
