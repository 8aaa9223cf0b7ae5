package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
)

func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	if req.Price == nil {
		s.writeError(c, apperr.Validation("price is required"))
		return
	}

	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}

	product, err := s.catalog.CreateProduct(c.Request.Context(), service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Price:       *req.Price,
		Stock:       stock,
		CategoryIDs: req.Categories,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (s *Server) getProduct(c *gin.Context) {
	product, err := s.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) listProducts(c *gin.Context) {
	params, err := parsePagination(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, err := s.catalog.ListProducts(c.Request.Context(), params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) updateProduct(c *gin.Context) {
	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	product, err := s.catalog.UpdateProduct(c.Request.Context(), c.Param("id"), service.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryIDs: req.Categories,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	category, err := s.catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (s *Server) getCategory(c *gin.Context) {
	category, err := s.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.catalog.ListCategories(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (s *Server) updateCategory(c *gin.Context) {
	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	category, err := s.catalog.UpdateCategory(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

func (s *Server) deleteCategory(c *gin.Context) {
	if err := s.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
