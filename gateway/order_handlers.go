package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
)

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	// default to the authorized caller when no explicit user is given
	userID := req.UserID
	if userID == "" {
		userID = capabilityFrom(c).UserID
	}

	lines := make([]service.OrderLineInput, len(req.Products))
	for i, p := range req.Products {
		lines[i] = service.OrderLineInput{
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
		}
	}

	order, err := s.orders.Create(c.Request.Context(), userID, lines)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (s *Server) listOrders(c *gin.Context) {
	params, err := parsePagination(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, err := s.orders.List(c.Request.Context(), params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	if req.Status == "" {
		s.writeError(c, apperr.Validation("status is required"))
		return
	}

	order, err := s.orders.UpdateStatus(c.Request.Context(), c.Param("id"), models.OrderStatus(req.Status))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) deleteOrder(c *gin.Context) {
	if err := s.orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// checkout converts the cart of the user named in the path into an order.
func (s *Server) checkout(c *gin.Context) {
	order, err := s.orders.Checkout(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
