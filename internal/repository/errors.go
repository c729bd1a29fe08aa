package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrAlreadyExists 表示创建时发现同键记录已存在（创建冲突信号）
	ErrAlreadyExists = errors.New("repository: record already exists")
	// ErrVersionConflict 表示带版本号的写回观察到了过期版本（乐观并发冲突）
	ErrVersionConflict = errors.New("repository: version conflict")
)

// 特定资源的错误
var (
	ErrRoomNotFound  = ErrNotFound
	ErrEntryNotFound = ErrNotFound
)
