package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arena/internal/store"

	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

const snapshotKey = "arena"

// Options 选择驱动与连接串。sqlite 只需要 Path，其余驱动使用 DSN。
type Options struct {
	Driver string
	Path   string
	DSN    string
}

type snapshotModel struct {
	Key         string         `gorm:"column:snapshot_key;primaryKey;size:64"`
	Document    datatypes.JSON `gorm:"column:document"`
	TimeElapsed int64          `gorm:"column:time_elapsed"`
	UpdatedAt   int64          `gorm:"column:updated_at"`
}

func (snapshotModel) TableName() string { return "arena_snapshots" }

// agentBalanceModel 冗余保存每个交易员的最新余额，方便直接用 SQL 查询排行。
type agentBalanceModel struct {
	Name           string  `gorm:"column:name;primaryKey;size:64"`
	Provider       string  `gorm:"column:provider"`
	CurrentBalance float64 `gorm:"column:current_balance"`
	TotalPnL       float64 `gorm:"column:total_pnl"`
	TotalTrades    int     `gorm:"column:total_trades"`
	WinRate        float64 `gorm:"column:win_rate"`
	OpenPositions  int     `gorm:"column:open_positions"`
	UpdatedAt      int64   `gorm:"column:updated_at"`
}

func (agentBalanceModel) TableName() string { return "arena_agent_balances" }

// GormStore 把快照写入关系型数据库。
type GormStore struct {
	db     *gorm.DB
	driver string
}

var _ store.Backend = (*GormStore)(nil)

func NewGormStore(opts Options) (*GormStore, error) {
	dialector, err := openDialector(opts)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&snapshotModel{}, &agentBalanceModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driverName(opts.Driver) == "sqlite" {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &GormStore{db: db, driver: driverName(opts.Driver)}, nil
}

func driverName(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	switch d {
	case "", "sqlite", "sqlite3", "gorm":
		return "sqlite"
	case "postgresql", "pg":
		return "postgres"
	default:
		return d
	}
}

func openDialector(opts Options) (gorm.Dialector, error) {
	switch driverName(opts.Driver) {
	case "sqlite":
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			return nil, fmt.Errorf("gorm store: sqlite 路径不能为空")
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
		return &sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, nil
	case "postgres":
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("gorm store: postgres 需要 dsn")
		}
		return postgres.Open(opts.DSN), nil
	case "mysql":
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("gorm store: mysql 需要 dsn")
		}
		return mysql.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("gorm store: 不支持的驱动 %q", opts.Driver)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *GormStore) Name() string {
	return "gorm/" + s.driver
}

func (s *GormStore) Load(ctx context.Context) (*store.Document, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var m snapshotModel
	err := s.db.WithContext(ctx).Where("snapshot_key = ?", snapshotKey).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return store.Decode(m.Document)
}

// Save 在一个事务里替换快照和余额表。
func (s *GormStore) Save(ctx context.Context, doc *store.Document) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	data, err := store.Encode(doc)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	snap := snapshotModel{Key: snapshotKey, Document: datatypes.JSON(data), TimeElapsed: doc.TimeElapsed, UpdatedAt: now}
	rows := make([]agentBalanceModel, 0, len(doc.AITraders))
	for _, a := range doc.AITraders {
		if a == nil {
			continue
		}
		rows = append(rows, agentBalanceModel{
			Name:           a.Name,
			Provider:       a.Provider,
			CurrentBalance: a.CurrentBalance,
			TotalPnL:       a.TotalPnL,
			TotalTrades:    a.TotalTrades,
			WinRate:        a.WinRate,
			OpenPositions:  len(a.OpenPositions),
			UpdatedAt:      now,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "time_elapsed", "updated_at"}),
		}).Create(&snap).Error; err != nil {
			return err
		}
		// 重置后交易员名单可能变化，先清掉旧行
		if err := tx.Where("1 = 1").Delete(&agentBalanceModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// Leaderboard 按余额从高到低返回交易员摘要。
func (s *GormStore) Leaderboard(ctx context.Context) ([]AgentBalance, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var models []agentBalanceModel
	if err := s.db.WithContext(ctx).Order("current_balance DESC, name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]AgentBalance, 0, len(models))
	for _, m := range models {
		out = append(out, AgentBalance{
			Name:           m.Name,
			Provider:       m.Provider,
			CurrentBalance: m.CurrentBalance,
			TotalPnL:       m.TotalPnL,
			TotalTrades:    m.TotalTrades,
			WinRate:        m.WinRate,
			OpenPositions:  m.OpenPositions,
		})
	}
	return out, nil
}

// AgentBalance 是排行查询的结果行。
type AgentBalance struct {
	Name           string  `json:"name"`
	Provider       string  `json:"provider"`
	CurrentBalance float64 `json:"currentBalance"`
	TotalPnL       float64 `json:"totalPnl"`
	TotalTrades    int     `json:"totalTrades"`
	WinRate        float64 `json:"winRate"`
	OpenPositions  int     `json:"openPositions"`
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
