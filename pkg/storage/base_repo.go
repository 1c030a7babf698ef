package storage

import "errors"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// BaseRepository 所有Repository的公共接口（对外导出）
type BaseRepository interface {
	// Close 关闭底层数据库连接
	Close() error
}
