package rpc

import (
	"net/http"
	"strings"

	"aichat/auth"
	"aichat/log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		if method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

// AuthGate resolves the signed-in user from the cookie session. Browser
// navigations are redirected to the sign-in page, API calls get 401.
func AuthGate(users auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		uid, _ := sess.Get(UserSessionKey).(string)
		gate := auth.NewGate()
		switch gate.Resolve(c.Request.Context(), users, uid) {
		case auth.GateAuthenticated:
			c.Set(UserContextName, gate.User())
			c.Next()
		default:
			if uid != "" {
				log.Info("session user no longer valid ", uid)
				sess.Clear()
				sess.Save()
			}
			if wantsHTML(c) {
				c.Redirect(http.StatusFound, SignInPath)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, Resp{
				ResultCode: ErrorCodeUnauthorized,
				ResultMsg:  "sign in required",
			})
		}
	}
}

func currentUser(c *gin.Context) *auth.User {
	v, ok := c.Get(UserContextName)
	if !ok {
		return nil
	}
	user, _ := v.(*auth.User)
	return user
}

// ginLogWriter routes gin's access log into the service log.
type ginLogWriter struct{}

func (*ginLogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if strings.Contains(msg, HealthCheckUrl) {
		return len(p), nil
	}
	log.Debug(msg)
	return len(p), nil
}
