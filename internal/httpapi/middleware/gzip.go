package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	excludedPaths = []string{
		"/api/health",
	}
	// already-compressed payloads: base64 image reads gain nothing
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".pdf", ".zip", ".gz", ".xlsx",
	}
)

func Gzip() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
