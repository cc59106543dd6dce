package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

func NewRouter(s *Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s))

	meta := r.Group("/api/meta")
	{
		// static routes before the :entity param
		meta.GET("", MetaListHandler(s))
		meta.GET("/fields", MetaFieldsHandler(s))
		meta.GET("/enums/:field", MetaEnumHandler(s))
		meta.GET("/:entity", MetaEntityHandler(s))
	}

	entities := r.Group("/api/entities")
	{
		entities.POST("", SaveHandler(s))
		entities.GET("/:entity", ListHandler(s))
		entities.GET("/:entity/:uuid", GetOneHandler(s))
		entities.DELETE("/:entity/:uuid", DeleteHandler(s))
	}

	admin := r.Group("/api/admin")
	{
		admin.POST("/sync", AdminSyncHandler(s))
		admin.POST("/reload", AdminReloadHandler(s))
		admin.GET("/lint", AdminLintHandler(s))
	}
	return r
}

func requestLogger(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithField("method", c.Request.Method).
			WithField("path", c.FullPath()).
			WithField("status", c.Writer.Status()).
			WithField("took", time.Since(start)).
			Debug("request")
	}
}

// RunServer serves until ctx is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, addr string, s *Service) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(s), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("http server listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "http shutdown")
	}
}
