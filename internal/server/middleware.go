package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inovacc/gitkeeper/internal/model"
)

const (
	ctxKeyUsername = "username"
	ctxKeyToken    = "token"
)

// authMiddleware rejects requests that do not carry a valid bearer token.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Fail("Missing or invalid authorization header"))
			return
		}

		username, ok := s.sessions.Validate(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Fail("Invalid or expired token"))
			return
		}

		c.Set(ctxKeyUsername, username)
		c.Set(ctxKeyToken, token)
		c.Next()
	}
}

// corsMiddleware allows browser clients from any origin.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
