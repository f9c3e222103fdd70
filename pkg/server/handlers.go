package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
	"sweepcache/pkg/origin"
	"sweepcache/pkg/scheduler"
	"sweepcache/pkg/sizer"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// KeyResponse 单个键的读取结果
type KeyResponse struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"` // cache 或 origin
}

// KeysResponse 键列表
type KeysResponse struct {
	Count   int           `json:"count"`
	Entries []KeyResponse `json:"entries"`
}

// SizeResponse 缓存大小
type SizeResponse struct {
	Size int64 `json:"size"`
	Len  int   `json:"len"`
}

// ConfigResponse 当前生效的缓存配置，未设置的限制为 null。
type ConfigResponse struct {
	MaxSize       *int64   `json:"max_size"`
	MaxAge        *string  `json:"max_age"`
	SweepInterval string   `json:"sweep_interval"`
	Ignored       []string `json:"ignored,omitempty"`
}

// ConfigPatch 配置修改请求。无效值会被忽略并在响应的 ignored 中列出。
type ConfigPatch struct {
	MaxSize       *int64  `json:"max_size"`
	MaxAge        *string `json:"max_age"`
	SweepInterval *string `json:"sweep_interval"`
	Sizer         *string `json:"sizer"`
	ClearMaxSize  bool    `json:"clear_max_size"`
	ClearMaxAge   bool    `json:"clear_max_age"`
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{}
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"entries":   s.store.Len(),
		"services":  services,
	}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			services["origin"] = "error: " + err.Error()
			health["status"] = "degraded"
		} else {
			services["origin"] = "ok"
		}
	}
	if b, ok := s.loader.(interface{ State() gobreaker.State }); ok {
		services["breaker"] = b.State().String()
	}

	if health["status"] == "ok" {
		c.JSON(http.StatusOK, health)
	} else {
		c.JSON(http.StatusServiceUnavailable, health)
	}
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}

func (s *Server) listKeys(c *gin.Context) {
	entries := make([]KeyResponse, 0, s.store.Len())
	s.store.ForEach(func(value string, key string, _ *Store) {
		entries = append(entries, KeyResponse{Key: key, Value: value, Source: "cache"})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	c.JSON(http.StatusOK, KeysResponse{Count: len(entries), Entries: entries})
}

func (s *Server) getKey(c *gin.Context) {
	key := c.Param("key")

	if value, ok := s.store.Get(key); ok {
		c.JSON(http.StatusOK, KeyResponse{Key: key, Value: value, Source: "cache"})
		return
	}

	if s.loader == nil {
		s.fail(c, cache.ErrCacheMissNotFound)
		return
	}

	value, err := s.loader.Load(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.store.Set(key, value)
	c.JSON(http.StatusOK, KeyResponse{Key: key, Value: value, Source: "origin"})
}

func (s *Server) hasKey(c *gin.Context) {
	if s.store.Has(c.Param("key")) {
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusNotFound)
}

func (s *Server) setKey(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.fail(c, apperr.WrapError(cache.ErrConfigInvalid, "failed to read request body", err))
		return
	}

	key := c.Param("key")
	s.store.Set(key, string(body))
	c.JSON(http.StatusOK, gin.H{
		"key":  key,
		"size": s.store.Size(),
		"len":  s.store.Len(),
	})
}

func (s *Server) deleteKey(c *gin.Context) {
	s.store.Del(c.Param("key"))
	c.Status(http.StatusNoContent)
}

func (s *Server) reset(c *gin.Context) {
	s.store.Reset()
	c.Status(http.StatusNoContent)
}

func (s *Server) getSize(c *gin.Context) {
	c.JSON(http.StatusOK, SizeResponse{Size: s.store.Size(), Len: s.store.Len()})
}

// setSize 总大小由缓存自行维护，不允许写入
func (s *Server) setSize(c *gin.Context) {
	s.fail(c, cache.ErrSizeNotWritable)
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentConfig())
}

func (s *Server) patchConfig(c *gin.Context) {
	var patch ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, apperr.WrapError(cache.ErrConfigInvalid, "invalid config patch", err))
		return
	}

	var ignored []string

	if patch.ClearMaxSize {
		s.store.ClearMaxSize()
	} else if patch.MaxSize != nil {
		s.store.SetMaxSize(*patch.MaxSize)
		if n, ok := s.store.MaxSize(); !ok || n != *patch.MaxSize {
			ignored = append(ignored, "max_size")
		}
	}

	if patch.ClearMaxAge {
		s.store.ClearMaxAge()
	} else if patch.MaxAge != nil {
		d, err := time.ParseDuration(*patch.MaxAge)
		if err == nil {
			s.store.SetMaxAge(d)
		}
		if got, ok := s.store.MaxAge(); err != nil || !ok || got != d {
			ignored = append(ignored, "max_age")
		}
	}

	if patch.SweepInterval != nil {
		d, err := time.ParseDuration(*patch.SweepInterval)
		if err == nil {
			s.store.SetSweepInterval(d)
		}
		if err != nil || s.store.SweepInterval() != d {
			ignored = append(ignored, "sweep_interval")
		}
	}

	if patch.Sizer != nil {
		fn, err := sizer.Lookup(*patch.Sizer)
		if err != nil || !s.store.SetSizeFn(fn) {
			ignored = append(ignored, "sizer")
		}
	}

	if len(ignored) > 0 {
		s.logger.WithField("ignored", ignored).Info("部分配置项无效，已忽略")
	}

	resp := s.currentConfig()
	resp.Ignored = ignored
	c.JSON(http.StatusOK, resp)
}

func (s *Server) currentConfig() ConfigResponse {
	resp := ConfigResponse{SweepInterval: s.store.SweepInterval().String()}
	if n, ok := s.store.MaxSize(); ok {
		resp.MaxSize = &n
	}
	if d, ok := s.store.MaxAge(); ok {
		age := d.String()
		resp.MaxAge = &age
	}
	return resp
}

func (s *Server) listJobs(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []*scheduler.Job{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.jobs.GetAllJobs()})
}

func (s *Server) runJob(c *gin.Context) {
	name := c.Param("name")
	if s.jobs == nil {
		s.fail(c, apperr.NewError(scheduler.ErrJobNotFound, "scheduler is not enabled"))
		return
	}
	if err := s.jobs.RunJob(name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": name, "status": "triggered"})
}

// fail 按错误代码写出错误响应
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	code := apperr.CodeOf(err)
	message := err.Error()
	if be, ok := err.(*apperr.BaseError); ok {
		message = be.Message
	}
	c.AbortWithStatusJSON(statusFor(code), ErrorResponse{
		Code:      string(code),
		Message:   message,
		RequestID: c.GetString(requestIDKey),
	})
}

func statusFor(code apperr.ErrorCode) int {
	switch code {
	case cache.ErrCacheMiss, origin.ErrNotFound, scheduler.ErrJobNotFound:
		return http.StatusNotFound
	case cache.ErrSizeReadOnly:
		return http.StatusMethodNotAllowed
	case cache.ErrConfigInvalid, scheduler.ErrJobDisabled:
		return http.StatusBadRequest
	case origin.ErrUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
