package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
)

func (s *Server) listUsers(c *gin.Context) {
	params, err := parsePagination(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, err := s.users.List(c.Request.Context(), params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	user, err := s.users.Update(c.Request.Context(), c.Param("id"), service.UpdateUserInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) promoteUser(c *gin.Context) {
	user, err := s.users.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getCart(c *gin.Context) {
	cart, err := s.users.GetCart(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cart})
}

func (s *Server) addToCart(c *gin.Context) {
	var req addCartRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	cart, err := s.users.AddToCart(c.Request.Context(), c.Param("id"), req.ProductID, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": cart})
}

func (s *Server) removeFromCart(c *gin.Context) {
	err := s.users.RemoveFromCart(c.Request.Context(), c.Param("id"), c.Param("productId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
