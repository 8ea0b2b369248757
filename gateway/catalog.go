package gateway

import (
	"net/http"

	"github.com/example/foodorder/pkg/service"
	"github.com/gin-gonic/gin"
)

type cartItemRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

type addFoodRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"gte=0"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

func (g *Gateway) getCart(c *gin.Context) {
	cart, err := g.deps.Carts.GetCart(c.Request.Context(), callerID(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindError(err))
		return
	}
	cart, err := g.deps.Carts.AddToCart(c.Request.Context(), callerID(c), req.ItemID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

func (g *Gateway) removeFromCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindError(err))
		return
	}
	cart, err := g.deps.Carts.RemoveFromCart(c.Request.Context(), callerID(c), req.ItemID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

func (g *Gateway) clearCart(c *gin.Context) {
	if err := g.deps.Carts.ClearCart(c.Request.Context(), callerID(c)); err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, map[string]int{})
}

func (g *Gateway) listFoods(c *gin.Context) {
	foods, err := g.deps.Foods.ListFoods(c.Request.Context())
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, foods)
}

func (g *Gateway) addFood(c *gin.Context) {
	var req addFoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindError(err))
		return
	}
	food, err := g.deps.Foods.AddFood(c.Request.Context(), callerID(c), service.FoodInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
	})
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, food)
}

func (g *Gateway) removeFood(c *gin.Context) {
	if err := g.deps.Foods.RemoveFood(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"id": c.Param("id")})
}
