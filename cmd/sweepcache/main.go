package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sweepcache/pkg/cache"
	"sweepcache/pkg/config"
	"sweepcache/pkg/logger"
	"sweepcache/pkg/origin"
	"sweepcache/pkg/reporter"
	"sweepcache/pkg/scheduler"
	"sweepcache/pkg/server"
)

var (
	configPath  = flag.String("config", "", "配置文件路径 (例如 ./config/sweepcache.yaml)")
	logLevel    = flag.String("log-level", "", "日志级别 (debug, info, warn, error)，覆盖配置文件")
	logFormat   = flag.String("log-format", "", "日志格式 (json or text)，覆盖配置文件")
	writeConfig = flag.String("write-config", "", "把生效的配置写入指定文件后退出")
)

// service 持有运行期间的所有组件
type service struct {
	store     *server.Store
	redis     *origin.RedisLoader
	reporter  *reporter.Reporter
	scheduler *scheduler.DefaultJobScheduler
	http      *server.Server
	logger    *logrus.Entry
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logger.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "写入配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("配置已写入 %s\n", *writeConfig)
		return
	}

	logger.Init(cfg.Logger)
	log := logger.WithComponent("main")

	svc, err := newService(cfg)
	if err != nil {
		log.WithError(err).Fatal("初始化服务失败")
	}

	if err := svc.start(cfg); err != nil {
		svc.close()
		log.WithError(err).Fatal("启动服务失败")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.WithField("signal", sig.String()).Info("正在关闭服务...")
	svc.stop(cfg.Server.ShutdownTimeout)
	svc.close()
	log.Info("服务已关闭")
}

func newService(cfg *config.Config) (*service, error) {
	svc := &service{logger: logger.WithComponent("service")}

	opts, err := cfg.CacheOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger.WithComponent("cache")
	svc.store = cache.New[string, string](opts)

	serverOpts := server.Options{Logger: logger.WithComponent("http")}

	if cfg.Origin.Enabled {
		svc.redis = origin.NewRedisLoader(cfg.Origin, logger.WithComponent("origin"))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.redis.Ping(ctx); err != nil {
			// 回源暂时不可用不阻止启动，健康检查会反映出来
			svc.logger.WithError(err).Warn("回源 Redis 不可用")
		}

		var loader origin.Loader = svc.redis
		if cfg.Origin.Retries > 0 {
			loader = origin.NewRetryLoader(loader, cfg.Origin.Retries, cfg.Origin.RetryBackoff, logger.WithComponent("origin"))
		}
		if cfg.Origin.Breaker.Enabled {
			loader = origin.NewBreakerLoader(loader, cfg.Origin.Breaker, logger.WithComponent("origin"))
		}
		serverOpts.Loader = loader
		serverOpts.Pinger = svc.redis
	}

	if cfg.Reporter.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := reporter.New(ctx, cfg.Reporter, svc.store, logger.WithComponent("reporter"))
		if err != nil {
			svc.close()
			return nil, err
		}
		svc.reporter = r
	}

	svc.scheduler = scheduler.NewJobScheduler()
	var statsReporter scheduler.StatsReporter
	if svc.reporter != nil {
		statsReporter = svc.reporter
	}
	svc.scheduler.SetExecutor(scheduler.NewMaintenanceExecutor(svc.store, statsReporter, logger.WithComponent("jobs")))
	svc.scheduler.AddJobs(cfg.Jobs)
	serverOpts.Jobs = svc.scheduler

	gin.SetMode(cfg.Server.Mode)
	svc.http = server.New(svc.store, serverOpts)

	return svc, nil
}

func (s *service) start(cfg *config.Config) error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	if err := s.http.Start(cfg.Server.Port); err != nil {
		return err
	}

	maxSize, _ := s.store.MaxSize()
	maxAge, _ := s.store.MaxAge()
	s.logger.WithFields(logrus.Fields{
		"port":           cfg.Server.Port,
		"sizer":          cfg.Cache.Sizer,
		"max_size":       maxSize,
		"max_age":        maxAge.String(),
		"sweep_interval": s.store.SweepInterval().String(),
		"origin":         cfg.Origin.Enabled,
		"reporter":       cfg.Reporter.Enabled,
	}).Info("sweepcache 已启动")
	return nil
}

func (s *service) stop(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("HTTP 服务未能优雅关闭")
	}
	if err := s.scheduler.Stop(); err != nil {
		s.logger.WithError(err).Error("停止任务调度器失败")
	}
}

func (s *service) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.reporter != nil {
		s.reporter.Close()
	}
}
