package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/agent-protocol/a2a-inspector/pkg/inspector"
)

// AgentCardRequest is the body of the load and inspect endpoints.
type AgentCardRequest struct {
	URL string `json:"url" binding:"required"`
}

// ChatRequest is the body of the send-message endpoint.
type ChatRequest struct {
	URL     string `json:"url" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// statusFor maps an error kind to the HTTP status of a failed envelope.
func statusFor(kind inspector.ErrorKind) int {
	switch kind {
	case inspector.KindValidation:
		return http.StatusBadRequest
	case inspector.KindConnection, inspector.KindProtocol:
		return http.StatusBadGateway
	case inspector.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope[T any](c *gin.Context, env inspector.Envelope[T]) {
	status := http.StatusOK
	if !env.Success {
		status = statusFor(env.Kind)
	}
	c.JSON(status, env)
}

// bindJSON decodes the request body into req. Failures are written as a
// validation envelope and reported as false.
func bindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		msg := bindingMessage(err)
		c.JSON(http.StatusBadRequest, inspector.Envelope[json.RawMessage]{
			Error: msg,
			Kind:  inspector.KindValidation,
		})
		return false
	}
	return true
}

// bindingMessage renders a binding error for the client.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				msgs = append(msgs, fmt.Sprintf("%s is required", field))
			default:
				msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
			}
		}
		return strings.Join(msgs, "; ")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return "Invalid JSON body"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Invalid type for field %s", typeErr.Field)
	case errors.Is(err, io.EOF):
		return "Request body is required"
	}
	return "Invalid request body: " + err.Error()
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": s.version,
	})
}

// handleInfo describes the API.
func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": s.version,
		"endpoints": gin.H{
			"load":         "POST /api/v1/inspector/load",
			"inspect":      "POST /api/v1/inspector/inspect",
			"send_message": "POST /api/v1/inspector/send-message",
			"stream":       "GET /api/v1/inspector/stream (websocket)",
			"health":       "GET /health",
		},
	})
}

func (s *Server) handleLoad(c *gin.Context) {
	var req AgentCardRequest
	if !bindJSON(c, &req) {
		return
	}
	writeEnvelope(c, s.inspector.LoadAgentCard(c.Request.Context(), req.URL))
}

func (s *Server) handleInspect(c *gin.Context) {
	var req AgentCardRequest
	if !bindJSON(c, &req) {
		return
	}
	writeEnvelope(c, s.inspector.InspectAgentCard(c.Request.Context(), req.URL))
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}
	writeEnvelope(c, s.inspector.SendChatMessage(c.Request.Context(), req.URL, req.Message))
}
