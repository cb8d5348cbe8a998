package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/xingyu/internal/balance"
	"github.com/smallbiznis/xingyu/internal/cache"
	"github.com/smallbiznis/xingyu/internal/checkin"
	checkindomain "github.com/smallbiznis/xingyu/internal/checkin/domain"
	"github.com/smallbiznis/xingyu/internal/clock"
	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/smallbiznis/xingyu/internal/conversation"
	conversationdomain "github.com/smallbiznis/xingyu/internal/conversation/domain"
	"github.com/smallbiznis/xingyu/internal/generation"
	generationdomain "github.com/smallbiznis/xingyu/internal/generation/domain"
	"github.com/smallbiznis/xingyu/internal/observability"
	obsmiddleware "github.com/smallbiznis/xingyu/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/xingyu/internal/observability/metrics"
	obstracing "github.com/smallbiznis/xingyu/internal/observability/tracing"
	"github.com/smallbiznis/xingyu/internal/providers/llm"
	"github.com/smallbiznis/xingyu/internal/ratelimit"
	"github.com/smallbiznis/xingyu/internal/spread"
	spreaddomain "github.com/smallbiznis/xingyu/internal/spread/domain"
	"github.com/smallbiznis/xingyu/internal/user"
	userdomain "github.com/smallbiznis/xingyu/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	cache.Module,
	llm.Module,
	user.Module,
	spread.Module,
	balance.Module,
	conversation.Module,
	ratelimit.Module,
	generation.Module,
	checkin.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

// run serves HTTP. WriteTimeout stays unset: readings stream for minutes and
// are bounded per request by GENERATION_TIMEOUT instead.
func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	userSvc       userdomain.Service
	spreadSvc     spreaddomain.Service
	conversations conversationdomain.Store
	generationSvc generationdomain.Service
	checkinSvc    checkindomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	UserSvc       userdomain.Service
	SpreadSvc     spreaddomain.Service
	Conversations conversationdomain.Store
	GenerationSvc generationdomain.Service
	CheckinSvc    checkindomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		userSvc:       p.UserSvc,
		spreadSvc:     p.SpreadSvc,
		conversations: p.Conversations,
		generationSvc: p.GenerationSvc,
		checkinSvc:    p.CheckinSvc,
	}

	svc.registerPublicRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/api/public")

	public.POST("/ai/tarot", s.GenerateTarotReading)
	public.GET("/ai/conversations", s.ListConversations)

	public.GET("/tarot/spreads", s.ListSpreads)

	public.GET("/user/info", s.GetUserInfo)
	public.POST("/user/checkin", s.Checkin)
	public.GET("/user/checkin/stats", s.GetCheckinStats)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
