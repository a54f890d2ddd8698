package store

import (
	"context"
	"errors"
)

// ErrNoSnapshot 表示后端中还没有任何快照。
var ErrNoSnapshot = errors.New("no snapshot")

// Backend 保存与读取完整快照。Save 需要整体替换，不能留下半写入状态。
type Backend interface {
	Name() string
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Discard 不做任何持久化，persistence.driver=none 时使用。
type Discard struct{}

func (Discard) Name() string { return "none" }

func (Discard) Load(context.Context) (*Document, error) { return nil, ErrNoSnapshot }

func (Discard) Save(context.Context, *Document) error { return nil }

func (Discard) Close() error { return nil }
