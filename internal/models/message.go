package models

import (
	"encoding/json"
)

// MessageKind 定义了消息的内容类型。
type MessageKind string

const (
	TextMessage  MessageKind = "text"
	ImageMessage MessageKind = "image"
	VideoMessage MessageKind = "video"
	FileMessage  MessageKind = "file"
)

// Reaction 是附着在消息上的 (emoji, 用户) 对。
// 不变量：同一条消息上每个用户至多持有一个 Reaction。
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID uint   `json:"userId"`
}

// Message 代表存储在数据库中的一对一聊天消息。
// 消息永不物理删除：按观看者隐藏记录在 DeletedForRaw，
// 全局删除通过 IsDeleted 墓碑标记表达。
type Message struct {
	BaseModel
	ConversationID uint        `gorm:"index;not null" json:"conversationId"`
	SenderID       uint        `gorm:"index;not null" json:"senderId"`
	ReceiverID     uint        `gorm:"index;not null" json:"receiverId"`
	Kind           MessageKind `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Body           string      `gorm:"type:text" json:"message"` // 纯媒体消息可为空

	MediaURL string `gorm:"type:varchar(512)" json:"mediaUrl,omitempty"`
	Caption  string `gorm:"type:text" json:"caption,omitempty"`

	// ReactionsRaw 以 JSONB 存储 []Reaction，保持插入顺序。
	ReactionsRaw json.RawMessage `gorm:"type:jsonb" json:"reactions,omitempty"`

	// DeletedForRaw 以 JSONB 存储对哪些用户隐藏此消息（"为我删除"）。
	DeletedForRaw json.RawMessage `gorm:"type:jsonb" json:"deletedFor,omitempty"`

	// IsDeleted 为 true 表示"为所有人删除"的墓碑：内容已清空且不可再变更。
	IsDeleted bool `gorm:"default:false" json:"isDeleted"`

	// 关联关系
	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// Reactions decodes the stored reaction list. 空值返回空切片。
func (m *Message) Reactions() []Reaction {
	if len(m.ReactionsRaw) == 0 {
		return nil
	}
	var reactions []Reaction
	if err := json.Unmarshal(m.ReactionsRaw, &reactions); err != nil {
		return nil
	}
	return reactions
}

// SetReactions replaces the stored reaction list.
func (m *Message) SetReactions(reactions []Reaction) error {
	if len(reactions) == 0 {
		m.ReactionsRaw = nil
		return nil
	}
	data, err := json.Marshal(reactions)
	if err != nil {
		return err
	}
	m.ReactionsRaw = data
	return nil
}

// DeletedFor decodes the set of viewers the message is hidden for.
func (m *Message) DeletedFor() []uint {
	if len(m.DeletedForRaw) == 0 {
		return nil
	}
	var viewers []uint
	if err := json.Unmarshal(m.DeletedForRaw, &viewers); err != nil {
		return nil
	}
	return viewers
}

// SetDeletedFor replaces the hidden-viewer set.
func (m *Message) SetDeletedFor(viewers []uint) error {
	if len(viewers) == 0 {
		m.DeletedForRaw = nil
		return nil
	}
	data, err := json.Marshal(viewers)
	if err != nil {
		return err
	}
	m.DeletedForRaw = data
	return nil
}

// HiddenFor reports whether the message is hidden for the given viewer.
// 墓碑消息对任何人都不算隐藏：所有人看到的是清空后的内容。
func (m *Message) HiddenFor(viewerID uint) bool {
	if m.IsDeleted {
		return false
	}
	for _, id := range m.DeletedFor() {
		if id == viewerID {
			return true
		}
	}
	return false
}

// Tombstone 执行"为所有人删除"：清空正文/媒体/说明/表情回应，
// 类型回退为 text 并设置墓碑标记。此后消息除观看者集合外不可变。
func (m *Message) Tombstone() {
	m.Body = ""
	m.MediaURL = ""
	m.Caption = ""
	m.ReactionsRaw = nil
	m.Kind = TextMessage
	m.IsDeleted = true
}
