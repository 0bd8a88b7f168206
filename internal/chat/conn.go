package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"zeechat/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境应校验来源
		return true
	},
}

// wsConn 是 Conn 的 gorilla/websocket 实现。
// 写入由单个 writePump goroutine 独占；Ping 走 WriteControl，
// 与数据帧写入并发安全，因此全局心跳定时器可以直接探测任意连接。
type wsConn struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
	alive  atomic.Bool
	cfg    config.WebSocketConfig

	closeOnce sync.Once
	done      chan struct{}
}

// UserID returns the authenticated owner of the connection.
func (c *wsConn) UserID() uint { return c.userID }

// Alive reports the liveness flag set by the most recent pong.
func (c *wsConn) Alive() bool { return c.alive.Load() }

// SetAlive sets the liveness flag.
func (c *wsConn) SetAlive(alive bool) { c.alive.Store(alive) }

// TrySend 序列化信封并非阻塞地入队。缓冲已满或连接已关闭时返回 false，
// 绝不阻塞调用方。
func (c *wsConn) TrySend(ev Envelope) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("序列化事件 %s 失败: %v", ev.Type, err)
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Ping sends a control-frame liveness probe.
func (c *wsConn) Ping() error {
	deadline := time.Now().Add(time.Duration(c.cfg.WriteWaitSeconds) * time.Second)
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close 关闭底层传输并唤醒 writePump，可重复调用。
func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump 从对端读取帧并交给路由器。对端的 pong 置位存活标记并顺延读超时。
// 退出时向 hub 注销，由 hub 决定是否产生离线副作用。
func (c *wsConn) readPump(router *Router) {
	defer func() {
		c.hub.Unregister(context.Background(), c)
	}()

	pongWait := time.Duration(c.cfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(c.cfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("用户 %d 的连接异常关闭: %v", c.userID, err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		router.Handle(c, data)
	}
}

// writePump 独占写入底层连接，排空发送缓冲直到连接关闭。
func (c *wsConn) writePump() {
	writeWait := time.Duration(c.cfg.WriteWaitSeconds) * time.Second
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("写入用户 %d 的连接失败: %v", c.userID, err)
				return
			}
		}
	}
}

// ServeConn upgrades the HTTP request, registers the connection for the
// authenticated user, and starts the read/write pumps.
// 注册发生在泵启动之前，保证同一用户的旧连接先被淘汰。
func ServeConn(hub *Hub, router *Router, userID uint, w http.ResponseWriter, r *http.Request, cfg config.WebSocketConfig) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("升级用户 %d 的 WebSocket 连接失败: %v", userID, err)
		return
	}

	c := &wsConn{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBufferSize),
		userID: userID,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	// 新连接视为存活，直到下个心跳周期要求它用 pong 证明
	c.alive.Store(true)

	hub.Register(r.Context(), c)

	go c.writePump()
	go c.readPump(router)
}
