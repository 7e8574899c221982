package router

import (
	"github.com/gin-gonic/gin"
	"gopherbazaar.com/internal/httpapi/handler"
)

func Market(api *gin.RouterGroup, h *handler.Market) {
	market := api.Group("/market")
	{
		market.GET("/items", h.Items)
		market.POST("/items", h.AddItem)
		market.GET("/wishes/:owner", h.WishesOf)
		market.POST("/wishes", h.AddWish)
		market.POST("/buy", h.Buy)
	}
}
