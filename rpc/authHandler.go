package rpc

import (
	"context"
	"net/http"

	"aichat/auth"
	"aichat/log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authFunc func(ctx context.Context, email, password string) (*auth.User, error)

func (s *Service) HandleSignUp(c *gin.Context) {
	s.authenticate(c, s.users.SignUp)
}

func (s *Service) HandleSignIn(c *gin.Context) {
	s.authenticate(c, s.users.SignIn)
}

func (s *Service) authenticate(c *gin.Context, fn authFunc) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": auth.Message(&auth.Error{Kind: auth.KindInvalidCredential})})
		return
	}
	user, err := fn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if auth.KindOf(err) == auth.KindUnknown {
			log.Error("auth provider error: ", err)
		} else {
			log.Info("auth rejected: ", auth.KindOf(err))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": auth.Message(err)})
		return
	}
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(UserSessionKey, user.ID)
	if err := sess.Save(); err != nil {
		log.Error("save session: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": auth.FallbackMessage})
		return
	}
	ok(c, user)
}

func (s *Service) HandleSignOut(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		log.Error("clear session: ", err)
	}
	ok(c, "")
}

func (s *Service) HandleMe(c *gin.Context) {
	ok(c, currentUser(c))
}

func (s *Service) HandleHome(c *gin.Context) {
	ok(c, gin.H{"user": currentUser(c)})
}
