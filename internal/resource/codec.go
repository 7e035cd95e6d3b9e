package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var errEmptyPayload = errors.New("empty payload")

// Decode 将 payload 解析为单个 JSON 值。数字保留为 json.Number，
// 以保证再次序列化时不丢精度；值之后只允许出现空白。
func Decode(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyPayload
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &trailingDataError{offset: dec.InputOffset()}
	}
	return value, nil
}

// Format 将已通过 Decode 校验的 payload 排版为缓存条目：2 空格缩进、UTF-8、末尾带换行。
// 直接基于原始字节排版，因此对象键顺序、数字写法与字符串转义都与远端保持一致。
func Format(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(payload), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

type trailingDataError struct {
	offset int64
}

func (e *trailingDataError) Error() string {
	return fmt.Sprintf("unexpected data after JSON value at offset %d", e.offset)
}

// errorOffset 提取解析错误的字节偏移，无法定位时返回 -1。
func errorOffset(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var trailing *trailingDataError
	if errors.As(err, &trailing) {
		return trailing.offset
	}
	return -1
}
