package middleware

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// SecureHeaders hardens responses without HSTS or SSL redirects: the daemon
// speaks plain HTTP on loopback only.
func SecureHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		IsDevelopment:      false,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IENoOpen:           true,
	})
}
