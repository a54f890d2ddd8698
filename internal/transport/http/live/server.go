package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"arena/internal/broadcast"
	"arena/internal/ledger"
	"arena/internal/logger"
	"arena/internal/metrics"
	"arena/internal/store"
	"arena/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
)

// Engine 是 HTTP 层需要的引擎能力。
type Engine interface {
	Start(ctx context.Context) error
	Stop()
	Reset(ctx context.Context) error
	Running() bool
	State() *store.Document
	WithInitialState(fn func(doc *store.Document))
	AgentPerformance(name string) (ledger.Performance, error)
}

// DecisionLister 提供模型调用审计记录查询。
type DecisionLister interface {
	List(ctx context.Context, q decisionlog.Query) ([]decisionlog.DecisionLogRecord, error)
	Count(ctx context.Context, q decisionlog.Query) (int, error)
}

// Server 提供竞技场的 REST 接口与 websocket 推送。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr      string
	Engine    Engine
	Hub       *broadcast.Hub
	Decisions DecisionLister
	Metrics   *metrics.Recorder
}

// NewServer 构建 HTTP server。原有路径同时挂在 /api 下。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("http server requires engine")
	}
	if cfg.Hub == nil {
		return nil, errors.New("http server requires broadcast hub")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":3001"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	r := NewRouter(cfg.Engine, cfg.Hub, cfg.Decisions, cfg.Metrics)
	r.Register(&router.RouterGroup)
	r.Register(router.Group("/api"))
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录每个请求的方法、路径、状态与耗时。
func requestLogger() gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		log.Debug("request", "method", method, "path", fullPath, "status", status, "ip", client, "dur", dur)
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler 暴露路由，测试直接使用。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("HTTP 服务监听 %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
