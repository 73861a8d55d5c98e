package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"phoneotp/internal/handlers"
	"phoneotp/internal/services"
)

// SetupRoutes mounts the three OTP endpoints under the paths the mobile app
// already calls. guards run in front of them (auth, rate limiting).
func SetupRoutes(r *gin.Engine, otpHandler *handlers.OTPHandler, logger *zap.Logger, guards ...gin.HandlerFunc) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	otp := r.Group("/", guards...)
	{
		otp.POST("/otp-send", handlers.Recover(services.ReasonFatal, logger), otpHandler.Send)
		otp.POST("/otp-verify", handlers.Recover(services.ReasonServerError, logger), otpHandler.Verify)
		otp.POST("/find-email-by-phone", handlers.Recover(services.ReasonServerError, logger), otpHandler.FindEmailByPhone)
	}
	return r
}
