package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<name>.json    # 资源的 JSON 正文
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// EnsureDir 幂等地创建存储目录。
	EnsureDir() error

	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, name string) (*ReadResult, error)

	// Stat 仅返回条目描述，不打开文件。若不存在则返回 ErrNotFound。
	Stat(ctx context.Context, name string) (*Entry, error)

	// Put 写入条目并覆盖旧内容。Put 不创建目录，调用方需先调用 EnsureDir。
	// 实现需通过临时文件 + rename 保证写入原子性，并在失败时清理临时文件，旧条目保持不变。
	Put(ctx context.Context, name string, body io.Reader) (*Entry, error)
}

// Entry 描述一个磁盘上的缓存条目。
type Entry struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader，调用方负责关闭 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidName 表示资源名不能安全地映射为文件名。
	ErrInvalidName = errors.New("invalid resource name")
)

// FileExt 是每个条目文件的扩展名。
const FileExt = ".json"

// ValidateName 检查资源名是否为非空、文件系统安全的标识符：
// 仅允许 [A-Za-z0-9._-]，且不能以 '.' 开头。
func ValidateName(name string) error {
	if name == "" || name[0] == '.' {
		return ErrInvalidName
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return ErrInvalidName
		}
	}
	return nil
}
