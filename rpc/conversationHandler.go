package rpc

import (
	"errors"
	"net/http"
	"strings"

	"aichat/chat"
	"aichat/db"
	"aichat/log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type sendRequest struct {
	Message string `json:"message"`
}

type titleRequest struct {
	Title string `json:"title" binding:"required"`
}

func activeSession(c *gin.Context) chat.Session {
	id, _ := sessions.Default(c).Get(ConversationSessionKey).(string)
	return chat.Session{ConversationID: id}
}

func saveActive(c *gin.Context, sess chat.Session) {
	store := sessions.Default(c)
	if sess.Active() {
		store.Set(ConversationSessionKey, sess.ConversationID)
	} else {
		store.Delete(ConversationSessionKey)
	}
	if err := store.Save(); err != nil {
		log.Error("save session: ", err)
	}
}

// ownedConversation loads id and writes a 404 unless the current user owns it.
func (s *Service) ownedConversation(c *gin.Context, id string) (*db.Conversation, bool) {
	conv, err := s.store.GetConversation(c.Request.Context(), id)
	if err != nil {
		log.Error("get conversation ", id, ": ", err)
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, "failed to load conversation")
		return nil, false
	}
	if conv == nil || conv.UserID != currentUser(c).ID {
		fail(c, http.StatusNotFound, ErrorCodeNotFound, chat.ErrNotFound.Error())
		return nil, false
	}
	return conv, true
}

func (s *Service) HandleListConversations(c *gin.Context) {
	convs, err := s.chat.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		log.Error("list conversations: ", err)
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, "failed to load conversations")
		return
	}
	ok(c, convs)
}

func (s *Service) HandleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorCodeParseReq, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrorCodeParseReq, chat.ErrEmptyInput.Error())
		return
	}
	sess, err := s.chat.Send(c.Request.Context(), activeSession(c), currentUser(c).ID, req.Message)
	switch {
	case err == nil:
		saveActive(c, sess)
		ok(c, sess)
	case errors.Is(err, chat.ErrNotFound):
		saveActive(c, chat.NewChat(sess))
		fail(c, http.StatusNotFound, ErrorCodeNotFound, chat.ErrNotFound.Error())
	default:
		log.Error("send message: ", err)
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, chat.ErrorReply)
	}
}

func (s *Service) HandleNewChat(c *gin.Context) {
	sess := chat.NewChat(activeSession(c))
	saveActive(c, sess)
	ok(c, sess)
}

func (s *Service) HandleOpenConversation(c *gin.Context) {
	id := c.Param("id")
	if _, owned := s.ownedConversation(c, id); !owned {
		return
	}
	sess, err := s.chat.Open(c.Request.Context(), activeSession(c), id)
	if err != nil {
		log.Error("open conversation ", id, ": ", err)
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, "failed to load conversation")
		return
	}
	saveActive(c, sess)
	ok(c, sess)
}

func (s *Service) HandleDeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if _, owned := s.ownedConversation(c, id); !owned {
		return
	}
	sess, err := s.chat.Delete(c.Request.Context(), activeSession(c), id)
	if err != nil {
		log.Error("delete conversation ", id, ": ", err)
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, "failed to delete conversation")
		return
	}
	saveActive(c, sess)
	ok(c, sess)
}

func (s *Service) HandleRenameConversation(c *gin.Context) {
	id := c.Param("id")
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorCodeParseReq, "title is required")
		return
	}
	if _, owned := s.ownedConversation(c, id); !owned {
		return
	}
	if err := s.chat.Rename(c.Request.Context(), id, req.Title); err != nil {
		log.Error("rename conversation ", id, ": ", err)
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, "failed to rename conversation")
		return
	}
	ok(c, "")
}

func (s *Service) HandleMarkAnimated(c *gin.Context) {
	conv, owned := s.ownedConversation(c, c.Param("id"))
	if !owned {
		return
	}
	sess := chat.Session{ConversationID: conv.ID, Messages: conv.Messages}
	sess, err := s.chat.MarkAnimated(c.Request.Context(), sess, c.Param("messageId"))
	if errors.Is(err, chat.ErrMessageNotFound) {
		fail(c, http.StatusNotFound, ErrorCodeNotFound, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrorCodeUnknow, err.Error())
		return
	}
	ok(c, sess)
}
