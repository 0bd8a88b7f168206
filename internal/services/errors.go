package services

import "errors"

// 服务层的错误分类哨兵。接口层用 errors.Is 把它们映射到 HTTP 状态码，
// 实时路径上的失败只回显给发起者。
var (
	// ErrNotFound 表示被引用的用户、会话或消息不存在。
	ErrNotFound = errors.New("资源不存在")

	// ErrNotAuthorized 表示发起者无权执行该操作（未互相关注、非消息发送者等）。
	ErrNotAuthorized = errors.New("无权执行此操作")

	// ErrInvalidInput 表示请求本身不合法（空内容、已删除消息上的变更等）。
	ErrInvalidInput = errors.New("无效的请求")
)
