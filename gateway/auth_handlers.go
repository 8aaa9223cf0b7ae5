package gateway

import (
	"net/http"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
)

// invalidCredentials hides "no such user" behind the same response a bad
// password gets.
func invalidCredentials(err error) error {
	if apperr.IsKind(err, apperr.KindNotFound) {
		return apperr.Unauthorized("invalid credentials")
	}
	return err
}

func (s *Server) authenticate(hash, password string) error {
	return auth.CheckPassword(hash, password)
}

func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	user, err := s.users.SignUp(c.Request.Context(), service.SignUpInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		// do not reveal whether the email exists
		s.writeError(c, invalidCredentials(err))
		return
	}

	if err := s.authenticate(user.Password, req.Password); err != nil {
		s.writeError(c, err)
		return
	}

	token, err := s.auth.IssueToken(ctx, user)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Revoke(c.Request.Context(), bearerToken(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) profile(c *gin.Context) {
	capability := capabilityFrom(c)

	user, err := s.users.Get(c.Request.Context(), capability.UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
