package models

// Conversation 代表两个用户之间的一对一会话。
// 会话由无序的参与者对唯一标识；为避免 (A,B)/(B,A) 重复，
// UserID1 恒小于 UserID2（参见 EnsureCanonicalOrder）。
type Conversation struct {
	BaseModel
	UserID1 uint `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"userId1"`
	User1   User `gorm:"foreignKey:UserID1" json:"-"`
	UserID2 uint `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"userId2"`
	User2   User `gorm:"foreignKey:UserID2" json:"-"`

	// LastMessageID 可用于快速获取最后一条消息以供会话列表展示。
	// 可为空，新会话可能还没有消息。
	LastMessageID *uint    `gorm:"index" json:"lastMessageId,omitempty"`
	LastMessage   *Message `gorm:"foreignKey:LastMessageID" json:"lastMessage,omitempty"`

	// 此会话的所有消息，插入顺序即时间顺序 (按需加载)。
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName 指定 Conversation 模型的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// EnsureCanonicalOrder sets UserID1 to the smaller ID and UserID2 to the larger ID.
// This should be called before creating a Conversation record.
func (c *Conversation) EnsureCanonicalOrder() {
	if c.UserID1 > c.UserID2 {
		c.UserID1, c.UserID2 = c.UserID2, c.UserID1
	}
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.UserID1 == userID {
		return c.UserID2
	}
	return c.UserID1
}
