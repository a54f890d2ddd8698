package livehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arena/internal/broadcast"
	"arena/internal/engine"
	"arena/internal/logger"
	"arena/internal/metrics"
	"arena/internal/store"
	"arena/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
)

const welcomeMessage = "Connected to AI Trading Arena"

// Router 暴露引擎控制、状态查询与推送接口。
type Router struct {
	Engine    Engine
	Hub       *broadcast.Hub
	Decisions DecisionLister
	Metrics   *metrics.Recorder
}

func NewRouter(eng Engine, hub *broadcast.Hub, decisions DecisionLister, rec *metrics.Recorder) *Router {
	return &Router{Engine: eng, Hub: hub, Decisions: decisions, Metrics: rec}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/health", r.handleHealth)
	group.GET("/state", r.handleState)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/reset", r.handleReset)
	group.GET("/ws", r.handleWS)
	group.GET("/agents/:name/performance", r.handlePerformance)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/chart", r.handleChart)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"connections":   r.Hub.Count(),
		"engineRunning": r.Engine.Running(),
	})
}

func (r *Router) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, r.Engine.State())
}

func (r *Router) handleStart(c *gin.Context) {
	// 引擎生命周期不跟随本次请求
	if err := r.Engine.Start(context.WithoutCancel(c.Request.Context())); err != nil {
		logger.Errorf("[api] start engine failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] engine started ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "Trading engine started", "running": r.Engine.Running()})
}

func (r *Router) handleStop(c *gin.Context) {
	r.Engine.Stop()
	logger.Infof("[api] engine stopped ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "Trading engine stopped", "running": r.Engine.Running()})
}

func (r *Router) handleReset(c *gin.Context) {
	if err := r.Engine.Reset(context.WithoutCancel(c.Request.Context())); err != nil {
		logger.Errorf("[api] reset failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] trading data reset ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "Trading data reset", "running": r.Engine.Running()})
}

// handleWS 在引擎锁内订阅，新连接先收到完整状态，再收到之后的增量。
func (r *Router) handleWS(c *gin.Context) {
	var sub *broadcast.Subscriber
	r.Engine.WithInitialState(func(doc *store.Document) {
		sub = r.Hub.Subscribe(
			broadcast.NewEvent(broadcast.KindInitialState, doc),
			broadcast.System(welcomeMessage),
		)
	})
	r.Metrics.SetSubscribers(r.Hub.Count())
	logger.Infof("[ws] client connected ip=%s total=%d", c.ClientIP(), r.Hub.Count())

	broadcast.ServeWS(r.Hub, sub, c.Writer, c.Request)

	r.Metrics.SetSubscribers(r.Hub.Count())
	logger.Infof("[ws] client disconnected ip=%s total=%d", c.ClientIP(), r.Hub.Count())
}

func (r *Router) handlePerformance(c *gin.Context) {
	name := strings.ToUpper(strings.TrimSpace(c.Param("name")))
	perf, err := r.Engine.AgentPerformance(name)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownAgent) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.Decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	query := decisionlog.Query{
		Agent:    strings.ToUpper(strings.TrimSpace(c.Query("agent"))),
		Provider: strings.TrimSpace(c.Query("provider")),
		Action:   strings.ToUpper(strings.TrimSpace(c.Query("action"))),
		Limit:    limit,
		Offset:   offset,
	}

	reqCtx := c.Request.Context()
	listCtx, cancelList := context.WithTimeout(reqCtx, 2*time.Second)
	logs, err := r.Decisions.List(listCtx, query)
	cancelList()
	if err != nil {
		logger.Errorf("[api] decisions list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total := -1
	countCtx, cancelCount := context.WithTimeout(reqCtx, 800*time.Millisecond)
	if n, err := r.Decisions.Count(countCtx, query); err != nil {
		// count 失败不影响列表返回
		logger.Warnf("[api] decisions count failed ip=%s err=%v", c.ClientIP(), err)
	} else {
		total = n
	}
	cancelCount()

	c.JSON(http.StatusOK, gin.H{
		"logs":        logs,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}
