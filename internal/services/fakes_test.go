package services

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"zeechat/internal/chat"
	"zeechat/internal/models"
)

// --- 存储层假实现，全部基于内存 map ---

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User), nextID: 1}
}

func (r *fakeUserRepo) addUser(userName string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &models.User{UserName: userName, FullName: userName}
	u.ID = r.nextID
	r.nextID++
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.UserName == userName {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) UpdateOnlineStatus(ctx context.Context, id uint, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.IsOnline = online
	}
	return nil
}

func (r *fakeUserRepo) GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.UserBasicInfo{ID: u.ID, UserName: u.UserName, FullName: u.FullName, ProfilePic: u.ProfilePic}, nil
}

func (r *fakeUserRepo) ListOthers(ctx context.Context, currentUserID uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.ID != currentUserID {
			out = append(out, *u)
		}
	}
	return out, nil
}

type followEdge struct{ follower, followee uint }

type fakeFollowRepo struct {
	mu    sync.Mutex
	edges map[followEdge]bool
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{edges: make(map[followEdge]bool)}
}

func (r *fakeFollowRepo) addMutual(a, b uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges[followEdge{a, b}] = true
	r.edges[followEdge{b, a}] = true
}

func (r *fakeFollowRepo) Create(ctx context.Context, follow *models.Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges[followEdge{follow.FollowerID, follow.FolloweeID}] = true
	return nil
}

func (r *fakeFollowRepo) Delete(ctx context.Context, followerID, followeeID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.edges, followEdge{followerID, followeeID})
	return nil
}

func (r *fakeFollowRepo) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.edges[followEdge{followerID, followeeID}], nil
}

func (r *fakeFollowRepo) AreMutualFollowers(ctx context.Context, userID1, userID2 uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.edges[followEdge{userID1, userID2}] && r.edges[followEdge{userID2, userID1}], nil
}

func (r *fakeFollowRepo) GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for e := range r.edges {
		if e.follower == userID {
			ids = append(ids, e.followee)
		}
	}
	return ids, nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uint]*models.Conversation
	nextID        uint
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uint]*models.Conversation), nextID: 1}
}

func (r *fakeConversationRepo) findLocked(u1, u2 uint) *models.Conversation {
	if u1 > u2 {
		u1, u2 = u2, u1
	}
	for _, c := range r.conversations {
		if c.UserID1 == u1 && c.UserID2 == u2 {
			return c
		}
	}
	return nil
}

func (r *fakeConversationRepo) FindByParticipants(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(userID1, userID2), nil
}

func (r *fakeConversationRepo) FindOrCreateWithTx(ctx context.Context, tx *gorm.DB, userID1, userID2 uint) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.findLocked(userID1, userID2); c != nil {
		return c, nil
	}
	c := &models.Conversation{UserID1: userID1, UserID2: userID2}
	c.EnsureCanonicalOrder()
	c.ID = r.nextID
	r.nextID++
	r.conversations[c.ID] = c
	return c, nil
}

func (r *fakeConversationRepo) UpdateLastMessageWithTx(ctx context.Context, tx *gorm.DB, conversationID uint, messageID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[conversationID]; ok {
		id := messageID
		c.LastMessageID = &id
	}
	return nil
}

func (r *fakeConversationRepo) ListByUser(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Conversation
	for _, c := range r.conversations {
		if c.UserID1 == userID || c.UserID2 == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[uint]*models.Message
	nextID   uint
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uint]*models.Message), nextID: 1}
}

func (r *fakeMessageRepo) CreateWithTx(ctx context.Context, tx *gorm.DB, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message.ID = r.nextID
	r.nextID++
	r.messages[message.ID] = message
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[message.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) GetByConversationID(ctx context.Context, conversationID uint) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for id := uint(1); id < r.nextID; id++ {
		m, ok := r.messages[id]
		if !ok || m.ConversationID != conversationID {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

// fakeTxManager 直接以 nil 事务执行回调；假仓库不关心事务句柄。
type fakeTxManager struct{}

func (fakeTxManager) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// fakeDeliverer 记录实时投递。
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []deliveredEvent
	online    map[uint]bool
}

type deliveredEvent struct {
	userID uint
	event  chat.Envelope
}

func newFakeDeliverer(onlineUsers ...uint) *fakeDeliverer {
	online := make(map[uint]bool)
	for _, id := range onlineUsers {
		online[id] = true
	}
	return &fakeDeliverer{online: online}
}

func (d *fakeDeliverer) DeliverTo(userID uint, ev chat.Envelope) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, deliveredEvent{userID: userID, event: ev})
	return d.online[userID]
}

func (d *fakeDeliverer) deliveredTo(userID uint) []chat.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []chat.Envelope
	for _, ev := range d.delivered {
		if ev.userID == userID {
			out = append(out, ev.event)
		}
	}
	return out
}

// fakeChatConn 实现 chat.Conn，用于走真实 hub 的端到端测试。
type fakeChatConn struct {
	userID uint
	mu     sync.Mutex
	alive  bool
	sent   []chat.Envelope
}

func newFakeChatConn(userID uint) *fakeChatConn {
	return &fakeChatConn{userID: userID, alive: true}
}

func (c *fakeChatConn) UserID() uint { return c.userID }

func (c *fakeChatConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeChatConn) SetAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

func (c *fakeChatConn) TrySend(ev chat.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, ev)
	return true
}

func (c *fakeChatConn) Ping() error { return nil }

func (c *fakeChatConn) Close() {}

func (c *fakeChatConn) sentEvents() []chat.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}
