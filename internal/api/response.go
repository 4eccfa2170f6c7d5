package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Warning   string    `json:"warning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func okWithWarning(c *gin.Context, data any, warning string) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Warning: warning, Timestamp: time.Now().UTC()})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{Success: false, Error: err.Error(), Timestamp: time.Now().UTC()})
}
