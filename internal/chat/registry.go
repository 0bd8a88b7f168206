package chat

import (
	"sync"
)

// Conn 是注册表独占持有的一条活动连接。
// 实现方必须保证 TrySend 非阻塞、Close 可重复调用。
type Conn interface {
	// UserID 返回连接所属的已认证用户。
	UserID() uint
	// Alive 返回心跳存活标记；由最近一次 pong 置位。
	Alive() bool
	// SetAlive 设置心跳存活标记。
	SetAlive(alive bool)
	// TrySend 非阻塞地投递一个出站信封；返回 false 表示对端过慢或已断开。
	TrySend(ev Envelope) bool
	// Ping 发送一次存活探测。
	Ping() error
	// Close 关闭底层传输。
	Close()
}

// Registry 是进程级的用户到连接的映射表，每个用户至多一条连接。
// 采用互斥锁保护的 map，由服务器顶层生命周期持有并以引用传给各组件，
// 而不是包级单例。
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]Conn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]Conn)}
}

// Register installs the connection and returns any evicted previous
// connection for the same user. 后写者胜出，没有宽限期；关闭被淘汰连接
// 的责任在调用方。
func (r *Registry) Register(c Conn) (prev Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.conns[c.UserID()]
	r.conns[c.UserID()] = c
	return prev
}

// Lookup returns the live connection for the user, if any.
func (r *Registry) Lookup(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Remove deletes the entry only if the stored connection is the same
// instance. 这样迟到的关闭回调不会误删同一用户的新连接。
func (r *Registry) Remove(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.conns[c.UserID()]
	if !ok || stored != c {
		return false
	}
	delete(r.conns, c.UserID())
	return true
}

// Snapshot returns the current set of connections.
func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// SweepDead removes every connection whose liveness flag is unset and
// clears the flag on the survivors. 整个扫描在一个临界区内完成，
// 并发的注册不可能与淘汰交错；关闭与广播等副作用由调用方在锁外执行。
func (r *Registry) SweepDead() (dead, live []Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if !c.Alive() {
			delete(r.conns, userID)
			dead = append(dead, c)
			continue
		}
		c.SetAlive(false)
		live = append(live, c)
	}
	return dead, live
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
