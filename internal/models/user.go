package models

// User 代表系统中的用户。
// 凭证签发、资料编辑等流程属于外围协作方，核心只关心身份、展示属性和在线标记。
type User struct {
	BaseModel
	UserName     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"userName"`
	FullName     string `gorm:"type:varchar(100);not null" json:"fullName"`
	Email        string `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	ProfilePic   string `gorm:"type:varchar(255)" json:"profilePic,omitempty"`
	Bio          string `gorm:"type:text" json:"bio,omitempty"`

	// IsOnline 是注册表状态在持久层的镜像：连接注册时置 true，注销/心跳淘汰时置 false。
	IsOnline bool `gorm:"default:false" json:"isOnline"`

	// 关联关系
	Messages []Message `gorm:"foreignKey:SenderID" json:"messages,omitempty"` // 用户发送的消息
}

// UserBasicInfo holds minimal public information about a user.
// Used for the sender/receiver display attributes carried by receive_message.
type UserBasicInfo struct {
	ID         uint   `json:"id"`
	UserName   string `json:"userName"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
