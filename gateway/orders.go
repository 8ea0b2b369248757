package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBytes = 1 << 16

type orderItemRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" binding:"required"`
	Price    float64 `json:"price" binding:"gte=0"`
	Quantity int     `json:"quantity" binding:"required,gte=1"`
}

type addressRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"omitempty,email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type placeOrderRequest struct {
	Items   []orderItemRequest `json:"items" binding:"required,min=1,dive"`
	Amount  float64            `json:"amount" binding:"gte=0"`
	Address addressRequest     `json:"address"`
}

// flag accepts both JSON booleans and the "true"/"false" strings the
// storefront sends.
type flag string

func (f *flag) UnmarshalJSON(b []byte) error {
	*f = flag(strings.Trim(string(b), `"`))
	return nil
}

type verifyRequest struct {
	OrderID string `json:"orderId" form:"orderId" binding:"required"`
	Success flag   `json:"success" form:"success" binding:"required"`
}

type updateOrderRequest struct {
	Status  *models.OrderStatus `json:"status"`
	Payment *bool               `json:"payment"`
}

func bindError(err error) error {
	return fmt.Errorf("%w: %v", service.ErrValidation, err)
}

func (g *Gateway) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindError(err))
		return
	}

	in := service.PlaceOrderInput{
		UserID: callerID(c),
		Amount: req.Amount,
		Address: models.Address{
			FirstName: req.Address.FirstName,
			LastName:  req.Address.LastName,
			Email:     req.Address.Email,
			Street:    req.Address.Street,
			City:      req.Address.City,
			State:     req.Address.State,
			Zipcode:   req.Address.Zipcode,
			Country:   req.Address.Country,
			Phone:     req.Address.Phone,
		},
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, models.OrderItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	res, err := g.deps.Orders.PlaceOrder(c.Request.Context(), in)
	if err != nil {
		g.respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, gin.H{
		"session_url": res.SessionURL,
		"order_id":    res.Order.ID.Hex(),
	})
}

func (g *Gateway) verifyOrder(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBind(&req); err != nil {
		g.respondError(c, bindError(err))
		return
	}
	success, err := strconv.ParseBool(string(req.Success))
	if err != nil {
		g.respondError(c, bindError(fmt.Errorf("success must be true or false")))
		return
	}

	order, err := g.deps.Orders.ConfirmPayment(c.Request.Context(), req.OrderID, success, service.SourceVerify)
	if err != nil {
		g.respondError(c, err)
		return
	}

	if !success {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Payment failed",
			"data":    order,
		})
		return
	}
	respondData(c, http.StatusOK, order)
}

func (g *Gateway) webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		g.respondError(c, bindError(err))
		return
	}

	evt, err := g.deps.Webhooks.Parse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		g.logger.Warn("Rejected webhook",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		g.respondError(c, err)
		return
	}

	if _, err := g.deps.Orders.HandleWebhook(c.Request.Context(), evt); err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// queryInt reads an integer query parameter. Missing, empty or malformed
// values fall back to def; an explicit 0 is passed through.
func queryInt(c *gin.Context, key string, def int64) int64 {
	n, err := strconv.ParseInt(c.DefaultQuery(key, strconv.FormatInt(def, 10)), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (g *Gateway) listOrders(c *gin.Context) {
	page, err := g.deps.Orders.ListOrders(c.Request.Context(), callerID(c), service.ListOrdersQuery{
		Page:   queryInt(c, "page", service.DefaultPage),
		Limit:  queryInt(c, "limit", service.DefaultLimit),
		Status: c.Query("status"),
	})
	if err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Items,
		"meta":    page.Meta,
	})
}

func (g *Gateway) myOrders(c *gin.Context) {
	orders, err := g.deps.Orders.ListMyOrders(c.Request.Context(), callerID(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, orders)
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.deps.Orders.GetOrder(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

func (g *Gateway) updateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, bindError(err))
		return
	}

	order, err := g.deps.Orders.UpdateOrder(c.Request.Context(), callerID(c), c.Param("id"), service.UpdateOrderInput{
		Status:  req.Status,
		Payment: req.Payment,
	})
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

func (g *Gateway) orderHistory(c *gin.Context) {
	logs, err := g.deps.Orders.OrderHistory(c.Request.Context(), callerID(c), c.Param("id"), queryInt(c, "limit", service.DefaultLimit))
	if err != nil {
		g.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, logs)
}
