package rpc

import (
	"io"
	"net/http"

	"aichat/history"
	"aichat/log"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

func (s *Service) HandleGetHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": HistoryErrorRead})
		return
	}
	c.JSON(http.StatusOK, s.history.Read())
}

// HandlePostHistory merges the posted messages into the stored history by id.
func (s *Service) HandlePostHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": HistoryErrorSave})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("read history body: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": HistoryErrorSave})
		return
	}
	var incoming []history.Message
	if err := json.Unmarshal(body, &incoming); err != nil {
		log.Warn("decode history body: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": HistoryErrorSave})
		return
	}
	s.history.Update(func(existing []history.Message) []history.Message {
		return mergeHistory(existing, incoming)
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// mergeHistory appends the incoming messages whose id is not stored yet.
// An id repeated inside incoming is kept once.
func mergeHistory(existing, incoming []history.Message) []history.Message {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}
	merged := make([]history.Message, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	for _, m := range incoming {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	return merged
}
