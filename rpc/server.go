package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"aichat/auth"
	"aichat/chat"
	"aichat/db"
	"aichat/history"
	"aichat/log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	UserSessionKey         = "uid"
	ConversationSessionKey = "conversation_id"
	UserContextName        = "user"
	SessionName            = "aichat"
	SessionMaxAge          = 7 * 24 * 60 * 60
)

const (
	Success               = 200
	ErrorCodeUnknow       = -500
	ErrorCodeParseReq     = -502
	ErrorCodeNotFound     = -404
	ErrorCodeUnauthorized = -401
)

const (
	HealthCheckUrl = "/healthcheck"
	SignInPath     = "/auth"
)

const (
	HistoryErrorRead = "Failed to read chat history"
	HistoryErrorSave = "Failed to save chat history"
	ChatErrorMissing = "Message is required"
	ChatErrorFailed  = "Failed to get AI response"
)

var Host = "0.0.0.0"

type Resp struct {
	ResultCode int         `json:"ret"`
	ResultMsg  string      `json:"msg"`
	ResultBody interface{} `json:"data"`
}

type Options struct {
	Port          string
	SessionSecret string
	Store         db.Store
	History       *history.FileStore
	Users         auth.Provider
	Orchestrator  *chat.Orchestrator
	// Completion answers POST /api/chat. Nil disables the endpoint.
	Completion chat.Completer
}

type Service struct {
	port          string
	sessionSecret []byte
	store         db.Store
	history       *history.FileStore
	users         auth.Provider
	chat          *chat.Orchestrator
	completion    chat.Completer
	server        *http.Server
}

func NewService(opts Options) *Service {
	return &Service{
		port:          opts.Port,
		sessionSecret: []byte(opts.SessionSecret),
		store:         opts.Store,
		history:       opts.History,
		users:         opts.Users,
		chat:          opts.Orchestrator,
		completion:    opts.Completion,
	}
}

func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(&ginLogWriter{}), gin.Recovery())

	store := cookie.NewStore(s.sessionSecret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   SessionMaxAge,
		HttpOnly: true,
	})
	r.Use(Cors())
	r.Use(sessions.Sessions(SessionName, store))

	r.SetTrustedProxies(nil)
	r.GET(HealthCheckUrl, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/api/history", s.HandleGetHistory)
	r.POST("/api/history", s.HandlePostHistory)
	r.POST("/api/chat", s.HandleChat)

	r.POST("/api/auth/signup", s.HandleSignUp)
	r.POST("/api/auth/signin", s.HandleSignIn)
	r.POST("/api/auth/signout", s.HandleSignOut)

	gated := r.Group("/", AuthGate(s.users))
	gated.GET("/", s.HandleHome)
	gated.GET("/api/me", s.HandleMe)
	gated.GET("/api/conversations", s.HandleListConversations)
	gated.POST("/api/conversations/send", s.HandleSend)
	gated.POST("/api/conversations/new", s.HandleNewChat)
	gated.GET("/api/conversations/:id", s.HandleOpenConversation)
	gated.DELETE("/api/conversations/:id", s.HandleDeleteConversation)
	gated.PUT("/api/conversations/:id/title", s.HandleRenameConversation)
	gated.POST("/api/messages/:id/:messageId/animated", s.HandleMarkAnimated)
	return r
}

func (s *Service) Start(ctx context.Context) error {
	address := net.JoinHostPort(Host, s.port)
	s.server = &http.Server{
		Addr:              address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped: ", err)
		}
	}()
	log.Info("start rpc on " + address)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func reply(c *gin.Context, status int, rep Resp) {
	c.JSON(status, rep)
}

func ok(c *gin.Context, body interface{}) {
	reply(c, http.StatusOK, Resp{ResultCode: Success, ResultBody: body})
}

func fail(c *gin.Context, status, code int, msg string) {
	reply(c, status, Resp{ResultCode: code, ResultMsg: msg, ResultBody: ""})
}
