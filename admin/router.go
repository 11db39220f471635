// Package admin serves the HTTP side of keydir: liveness, stats and a read
// only view of the directory for operators.
package admin

import (
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/keydir/storage"
)

// NewRouter builds the admin router. debug enables gin's debug mode.
func NewRouter(dir storage.Directory, debug bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Access log, RFC3339 UTC timestamps. Health checks are too noisy to log.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	h := &handlers{dir: dir}

	r.GET("/ping", h.ping)
	r.GET("/health", h.health)
	r.GET("/stats", h.stats)
	r.GET("/keys/:username", h.lookup)
	r.GET("/backup", h.backup)

	return r
}

type handlers struct {
	dir storage.Directory
}

func (h *handlers) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) stats(c *gin.Context) {
	users, err := h.dir.Len()
	if err != nil {
		failed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *handlers) lookup(c *gin.Context) {
	username := c.Param("username")

	key, err := h.dir.Get(c.Request.Context(), storage.Username(username))
	switch {
	case errors.Is(err, storage.ErrUsernameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case err != nil:
		failed(c, err)

	default:
		c.JSON(http.StatusOK, gin.H{
			"username": username,
			"key":      hex.EncodeToString(key[:]),
		})
	}
}

func (h *handlers) backup(c *gin.Context) {
	data, err := h.dir.Backup()
	if err != nil {
		failed(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

// failed reports a directory error. An unavailable directory is a 503.
func failed(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrLockUnavailable) {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
