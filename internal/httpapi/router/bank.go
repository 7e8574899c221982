package router

import (
	"github.com/gin-gonic/gin"
	"gopherbazaar.com/internal/httpapi/handler"
)

func Bank(api *gin.RouterGroup, h *handler.Bank) {
	accounts := api.Group("/bank/accounts")
	{
		accounts.GET("", h.List)
		accounts.POST("", h.Create)
		accounts.GET("/:id", h.Get)
		accounts.DELETE("/:id", h.Delete)
		accounts.POST("/:id/deposit", h.Deposit)
		accounts.POST("/:id/withdraw", h.Withdraw)
	}
}
