package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TemplateSource 按名称返回内置文本。
type TemplateSource interface {
	Get(name string) (string, bool)
}

// PromptLoader 按引用加载人设文本。
type PromptLoader interface {
	Load(ref string) (string, error)
}

// FilePromptLoader 先查内置源，再按搜索目录读文件。读到的文件会缓存。
type FilePromptLoader struct {
	source TemplateSource
	bases  []string

	mu    sync.Mutex
	cache map[string]string
}

func NewPromptLoader(source TemplateSource, bases ...string) *FilePromptLoader {
	l := &FilePromptLoader{source: source, cache: make(map[string]string)}
	seen := make(map[string]struct{}, len(bases))
	for _, base := range bases {
		base = strings.TrimSpace(base)
		if base == "" {
			continue
		}
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		l.bases = append(l.bases, base)
	}
	return l
}

func (l *FilePromptLoader) Load(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if l.source != nil {
		if txt, ok := l.source.Get(ref); ok && strings.TrimSpace(txt) != "" {
			return txt, nil
		}
	}
	l.mu.Lock()
	if txt, ok := l.cache[ref]; ok {
		l.mu.Unlock()
		return txt, nil
	}
	l.mu.Unlock()

	var lastErr error
	for _, path := range l.candidates(ref) {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		txt := string(data)
		l.mu.Lock()
		l.cache[ref] = txt
		l.mu.Unlock()
		return txt, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("prompt %s: %w", ref, lastErr)
	}
	return "", fmt.Errorf("prompt %s 未找到", ref)
}

// candidates 依次尝试原路径、各搜索目录，以及补 .txt 后缀的版本。
func (l *FilePromptLoader) candidates(ref string) []string {
	cleaned := filepath.Clean(ref)
	withExt := func(p string) []string {
		if filepath.Ext(p) == "" {
			return []string{p, p + ".txt"}
		}
		return []string{p}
	}
	paths := withExt(cleaned)
	if !filepath.IsAbs(cleaned) {
		for _, base := range l.bases {
			paths = append(paths, withExt(filepath.Join(base, cleaned))...)
		}
	}
	return paths
}
