package jsonutil

import (
	"encoding/json"
	"fmt"
)

// Dump 以缩进 JSON 输出任意值，仅用于日志；无法序列化时退回 %+v。
func Dump(v any) string {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(buf)
}
