package handler

import (
	"github.com/gin-gonic/gin"

	"digiwallet/internal/service"
)

// SetupRouter wires the HTTP surface.
func SetupRouter(auth *service.AuthService, accounts *service.AccountService, ledger *service.LedgerService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(auth, accounts, ledger)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(auth))
		{
			protected.POST("/auth/logout", h.Logout)

			account := protected.Group("/account")
			{
				account.GET("", h.GetAccount)
				account.PUT("/profile", h.UpdateProfile)
				account.POST("/disable", h.Disable)
				account.GET("/lookup", h.Lookup)
			}

			protected.POST("/transfer", h.Transfer)
			protected.POST("/cash-in", h.CashIn)
			protected.POST("/cash-out", h.CashOut)
			protected.GET("/transactions", h.ListTransactions)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
