package chat

import (
	"context"
	"log"
	"sync"
	"time"
)

// Heartbeat 周期性地核验每条已注册连接的存活状态并淘汰死连接。
// 这是全部连接共享的一个全局定时器，而不是每连接一个，
// 因此整个注册表的探测节奏是同步的。
type Heartbeat struct {
	hub      *Hub
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewHeartbeat creates a monitor over the hub's registry.
func NewHeartbeat(hub *Hub, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		hub:      hub,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run blocks, sweeping the registry every interval until Stop is called.
func (h *Heartbeat) Run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	log.Printf("心跳监视器启动，周期 %s", h.interval)
	for {
		select {
		case <-h.done:
			log.Println("心跳监视器已停止。")
			return
		case <-ticker.C:
			h.sweep(context.Background())
		}
	}
}

// Stop terminates the monitor. 可安全地重复调用，保证定时器不泄漏。
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// sweep 执行一个心跳周期：存活标记未被 pong 置位的连接按异常断开处理，
// 其余连接清除标记并发送探测。淘汰与标记清除在注册表的单个临界区内完成，
// 关闭、离线广播和探测发送在锁外执行。
func (h *Heartbeat) sweep(ctx context.Context) {
	dead, live := h.hub.registry.SweepDead()

	for _, c := range dead {
		log.Printf("心跳超时，淘汰用户 %d 的连接", c.UserID())
		c.Close()
		h.hub.notifyOffline(ctx, c.UserID())
	}

	for _, c := range live {
		if err := c.Ping(); err != nil {
			// 探测发送失败不立即淘汰；下个周期存活标记仍未置位时自然出局
			log.Printf("发送心跳探测给用户 %d 失败: %v", c.UserID(), err)
		}
		if err := h.hub.presence.Touch(ctx, c.UserID()); err != nil {
			log.Printf("续期用户 %d 的在线记录失败: %v", c.UserID(), err)
		}
	}
}
