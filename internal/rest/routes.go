package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const contentType = "application/vnd.avrocompat.v1+json"

// ErrorResponse represents an error message
type ErrorResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status string `json:"status"`
}

type handlers struct {
	svc service.Service
}

// SetupRouter creates and configures a Gin router with all compatibility routes
func SetupRouter(svc service.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	// Set custom content type for all responses
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", contentType)
		c.Next()
	})

	h := handlers{svc: svc}
	r.GET("/healthz", h.health)

	compat := r.Group("/compatibility")
	{
		compat.POST("/check", h.check)
		compat.POST("/batch", h.batch)
		compat.POST("/level", h.level)
	}

	return r
}

// Routes returns the router as a plain http.Handler
func Routes(svc service.Service) http.Handler {
	return SetupRouter(svc)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	}
}

func (h handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h handlers) check(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	req, err := service.DecodeCheckRequest(body)
	if err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Check(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h handlers) batch(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	req, err := service.DecodeBatchRequest(body)
	if err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.CheckBatch(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h handlers) level(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	req, err := service.DecodeLevelRequest(body)
	if err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.CheckLevel(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func badRequest(c *gin.Context, err error) {
	log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected request")
	c.JSON(http.StatusBadRequest, ErrorResponse{
		ErrorCode: 42201,
		Message:   err.Error(),
	})
}

func serviceError(c *gin.Context, err error) {
	switch {
	case errbuilder.CodeOf(err) == errbuilder.CodeInvalidArgument:
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			ErrorCode: 42202,
			Message:   err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			ErrorCode: 50400,
			Message:   "compatibility check timed out",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			ErrorCode: 50300,
			Message:   "request cancelled",
		})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("compatibility check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			ErrorCode: 50000,
			Message:   err.Error(),
		})
	}
}
