package chat

import (
	"context"
	"sync"
)

// fakeConn 是测试用的 Conn 实现，记录投递与关闭。
type fakeConn struct {
	userID uint

	mu       sync.Mutex
	alive    bool
	sent     []Envelope
	closed   bool
	failSend bool
	pings    int
	pingErr  error
}

func newFakeConn(userID uint) *fakeConn {
	return &fakeConn{userID: userID, alive: true}
}

func (c *fakeConn) UserID() uint { return c.userID }

func (c *fakeConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeConn) SetAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

func (c *fakeConn) TrySend(ev Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed {
		return false
	}
	c.sent = append(c.sent, ev)
	return true
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentEvents() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) sentTypes() []string {
	var types []string
	for _, ev := range c.sentEvents() {
		types = append(types, ev.Type)
	}
	return types
}

// fakePresence 记录在线/离线转换与续期。
type fakePresence struct {
	mu      sync.Mutex
	online  []uint
	offline []uint
	touched []uint
}

func (p *fakePresence) MarkOnline(ctx context.Context, userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = append(p.online, userID)
	return nil
}

func (p *fakePresence) MarkOffline(ctx context.Context, userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = append(p.offline, userID)
	return nil
}

func (p *fakePresence) Touch(ctx context.Context, userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched = append(p.touched, userID)
	return nil
}

func (p *fakePresence) touchedCalls() []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint, len(p.touched))
	copy(out, p.touched)
	return out
}

func (p *fakePresence) offlineCalls() []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint, len(p.offline))
	copy(out, p.offline)
	return out
}
