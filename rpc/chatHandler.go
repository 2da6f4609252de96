package rpc

import (
	"net/http"
	"strings"

	"aichat/log"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat is the completion endpoint: {"message"} in, {"response"} out.
func (s *Service) HandleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": ChatErrorMissing})
		return
	}
	if s.completion == nil {
		log.Error("completion endpoint called without a configured backend")
		c.JSON(http.StatusInternalServerError, gin.H{"error": ChatErrorFailed})
		return
	}
	answer, err := s.completion.Complete(c.Request.Context(), req.Message)
	if err != nil {
		log.Warn("completion failed: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ChatErrorFailed})
		return
	}
	log.Debugw("completion answered", "question", req.Message, "answer", answer)
	c.JSON(http.StatusOK, gin.H{"response": answer})
}
