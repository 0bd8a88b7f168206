package storage

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 把跨实体的写操作包进一个数据库事务。
// 追加消息 + 更新会话 last_message 指针必须作为一个原子单元提交，
// 并发读者不能观察到不一致的中间态。
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a TxManager backed by the given gorm connection.
func NewGormTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
