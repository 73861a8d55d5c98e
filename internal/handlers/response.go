package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"phoneotp/internal/services"
)

// Envelope is the single response shape of every endpoint. Logical failures
// are still HTTP 200; clients branch on OK and Reason.
type Envelope struct {
	OK         bool     `json:"ok"`
	Stage      string   `json:"stage,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
	Missing    []string `json:"missing,omitempty"`

	Sandbox     bool       `json:"sandbox,omitempty"`
	Code        string     `json:"code,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	EmailMasked string     `json:"emailMasked,omitempty"`
}

func respondOK(c *gin.Context, env Envelope) {
	env.OK = true
	c.JSON(http.StatusOK, env)
}

// respondError renders err; anything that is not a *services.Failure is
// reported as fallback at the fatal stage.
func respondError(c *gin.Context, err error, fallback string) {
	var f *services.Failure
	if !errors.As(err, &f) {
		f = &services.Failure{Stage: services.StageFatal, Reason: fallback, Detail: err.Error()}
	}
	c.JSON(http.StatusOK, Envelope{
		Stage:      f.Stage,
		Reason:     f.Reason,
		Detail:     f.Detail,
		RetryAfter: f.RetryAfter,
		Missing:    f.Missing,
	})
}

// Recover turns a panic inside an endpoint into a fatal envelope with the
// stringified cause instead of gin's bare 500.
func Recover(reason string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic", zap.String("path", c.FullPath()), zap.Any("panic", r), zap.Stack("stack"))
				respondError(c, fmt.Errorf("%v", r), reason)
				c.Abort()
			}
		}()
		c.Next()
	}
}
