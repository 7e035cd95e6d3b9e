package resource

import (
	"errors"
	"fmt"
)

// ErrEmptyLocator 表示调用方没有提供远端地址。
var ErrEmptyLocator = errors.New("locator required")

// FetchError 表示远端获取失败（连接错误、超时、非 2xx 状态）。缓存不会被修改。
type FetchError struct {
	Name    string
	Locator string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Name, e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedDataError 表示远端返回的正文不是合法 JSON。该正文永远不会被缓存。
type MalformedDataError struct {
	Name    string
	Locator string
	// Offset 是解析失败处的字节偏移，无法定位时为 -1。
	Offset int64
	Err    error
}

func (e *MalformedDataError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed data for %s at offset %d: %v", e.Name, e.Offset, e.Err)
	}
	return fmt.Sprintf("malformed data for %s: %v", e.Name, e.Err)
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

// PersistenceError 表示本地存储无法创建、读取、解码或写入。
type PersistenceError struct {
	Name string
	// Op 取值 mkdir / read / decode / encode / write。
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
