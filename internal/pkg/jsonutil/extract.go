package jsonutil

import (
	"strings"
)

const codeFence = "```"

// ExtractJSON 从模型输出中取出第一段 JSON：优先取代码块内容，
// 否则取正文里最先出现的对象或数组。
func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := extractFromFence(raw); ok {
		return block, true
	}
	return extractBalanced(raw)
}

func extractFromFence(raw string) (string, bool) {
	rest := raw
	for {
		start := strings.Index(rest, codeFence)
		if start == -1 {
			return "", false
		}
		rest = rest[start+len(codeFence):]
		end := strings.Index(rest, codeFence)
		if end == -1 {
			return "", false
		}
		block := stripLanguageTag(rest[:end])
		rest = rest[end+len(codeFence):]
		if out, ok := extractBalanced(block); ok {
			return out, true
		}
	}
}

// stripLanguageTag 去掉 ```json 这类首行语言标记。
func stripLanguageTag(block string) string {
	block = strings.TrimLeft(block, " \t")
	if idx := strings.IndexAny(block, "\r\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	} else if !strings.ContainsAny(block, "[{") {
		return ""
	}
	return strings.TrimSpace(block)
}

func extractBalanced(raw string) (string, bool) {
	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return "", false
	}
	open := raw[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
