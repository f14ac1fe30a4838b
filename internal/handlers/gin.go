package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-api/internal/middleware"
)

// MaxBodyBytes caps request bodies read in server mode.
const MaxBodyBytes = 1 << 20

// Gin serves h over HTTP.
func Gin(h HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				writeResponse(c, errorResponse(http.StatusRequestEntityTooLarge, "Request body too large",
					fmt.Sprintf("Request body must not exceed %d bytes", MaxBodyBytes)))
				return
			case err != nil:
				writeResponse(c, errorResponse(http.StatusBadRequest, "Invalid JSON in request body", err.Error()))
				return
			}
		}

		req := Request{
			Body: string(body),
			ID:   c.Param("id"),
			Query: Query{
				Status: c.Query("status"),
				Limit:  c.Query("limit"),
				Offset: c.Query("offset"),
			},
			RequestID: c.GetString(middleware.RequestIDKey),
		}

		writeResponse(c, h(c.Request.Context(), req))
	}
}

func writeResponse(c *gin.Context, resp Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
}

// RegisterRoutes mounts the four todo operations on r.
func RegisterRoutes(r gin.IRoutes, h *TodoHandler) {
	r.POST("/todos", Gin(h.Create))
	r.GET("/todos", Gin(h.List))
	r.PUT("/todos/:id", Gin(h.Update))
	r.DELETE("/todos/:id", Gin(h.Delete))
}
