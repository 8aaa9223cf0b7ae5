package gateway

import (
	"strconv"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/pagination"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Request bodies are parsed and validated explicitly here, before any
// service is called; services receive typed inputs only.

type signUpRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type addCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type productRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Categories  []string         `json:"categories"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	UserID   string             `json:"user_id"`
	Products []orderLineRequest `json:"products"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// bindJSON decodes the body into dst, normalizing decode failures into a
// validation error.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

// parsePagination reads offset/limit/keyword query parameters with the
// shared defaults.
func parsePagination(c *gin.Context) (pagination.Params, error) {
	params := pagination.Params{
		Offset:  pagination.DefaultOffset,
		Limit:   pagination.DefaultLimit,
		Keyword: c.Query("keyword"),
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return params, apperr.Validation("offset must be an integer")
		}
		params.Offset = offset
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, apperr.Validation("limit must be an integer")
		}
		params.Limit = limit
	}

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}
