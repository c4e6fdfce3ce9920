package response

import "github.com/gin-gonic/gin"

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

// Error writes a JSON error with a real HTTP status. Streaming clients rely on
// validation and rate-limit rejections arriving before any stream bytes, so
// callers must invoke this before touching the response body.
func Error(c *gin.Context, status int, code int, message string) {
	c.JSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}
