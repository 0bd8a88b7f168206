package models

// Follow represents a directed follow edge between two users.
// 互相关注（两条相反方向的边同时存在）是发私信的前提。
type Follow struct {
	BaseModel
	FollowerID uint `gorm:"not null;uniqueIndex:idx_follow_edge"` // 关注发起方
	Follower   User `gorm:"foreignKey:FollowerID"`
	FolloweeID uint `gorm:"not null;uniqueIndex:idx_follow_edge"` // 被关注方
	Followee   User `gorm:"foreignKey:FolloweeID"`
}

// TableName 指定 Follow 模型的表名。
func (Follow) TableName() string {
	return "follows"
}
