// Package server 通过 HTTP 暴露缓存操作。
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sweepcache/pkg/cache"
	"sweepcache/pkg/origin"
	"sweepcache/pkg/scheduler"
)

// Store 是服务端使用的缓存实例
type Store = cache.Cache[string, string]

// Pinger 可探活的外部依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobRunner 是服务端用到的调度器能力
type JobRunner interface {
	GetAllJobs() []*scheduler.Job
	RunJob(jobName string) error
}

// Options 可选依赖，未设置的功能对应的路由返回 404 或被跳过
type Options struct {
	Loader origin.Loader // 缓存未命中时回源
	Pinger Pinger        // 回源服务健康检查
	Jobs   JobRunner
	Logger *logrus.Entry
}

// Server HTTP 服务
type Server struct {
	store  *Store
	loader origin.Loader
	pinger Pinger
	jobs   JobRunner
	logger *logrus.Entry
	router *gin.Engine
	server *http.Server
}

// New 创建 HTTP 服务并注册路由
func New(store *Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Server{
		store:  store,
		loader: opts.Loader,
		pinger: opts.Pinger,
		jobs:   opts.Jobs,
		logger: logger,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(RequestID())
	router.Use(AccessLog(s.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", s.healthCheck)
	router.GET("/stats", s.getStats)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/keys", s.listKeys)
		v1.GET("/keys/:key", s.getKey)
		v1.HEAD("/keys/:key", s.hasKey)
		v1.PUT("/keys/:key", s.setKey)
		v1.DELETE("/keys/:key", s.deleteKey)

		v1.POST("/reset", s.reset)

		v1.GET("/size", s.getSize)
		v1.PUT("/size", s.setSize)

		v1.GET("/config", s.getConfig)
		v1.PATCH("/config", s.patchConfig)

		v1.GET("/jobs", s.listJobs)
		v1.POST("/jobs/:name/run", s.runJob)
	}

	return router
}

// Handler 返回 HTTP 处理器，便于测试或嵌入其他服务
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 在后台开始监听
func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Infof("HTTP 服务监听于 %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP 服务异常退出")
		}
	}()

	return nil
}

// Shutdown 优雅停止 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
