package cmd

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/respd/internal/meta"
	"github.com/luma/respd/internal/metrics"
	"github.com/luma/respd/storage"
)

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - RFC3339 with UTC time format.
	//   - Skips the endpoints that are polled.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

// connCounter reports how many RESP clients are connected.
type connCounter interface {
	NumConns() int
}

func registerRoutes(r *gin.Engine, store storage.Store, conns connCounter, m *metrics.Metrics, debugHTTP bool) {
	// Ping test
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"keys":        store.Len(),
			"connections": conns.NumConns(),
			"version":     meta.GetInfo().Version,
		})
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	if !debugHTTP {
		return
	}

	r.GET("/debug/backup", func(c *gin.Context) {
		backup, err := store.Backup()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Data(http.StatusOK, "application/json", backup)
	})

	r.POST("/debug/restore", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := store.Restore(body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"keys": store.Len()})
	})
}
