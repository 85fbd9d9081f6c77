package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/lnurlauth"
)

// waitForLogin is the first message a browser sends after connecting.
type waitForLogin struct {
	Hash string `json:"hash"`
}

// AuthSocketHandler upgrades the connection and subscribes the browser to
// login events for its challenge hash. The subscription lives until the
// connection closes.
func AuthSocketHandler(service *lnurlauth.Service, allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}

	return func(c *gin.Context) {
		conn, errUpgrade := upgrader.Upgrade(c.Writer, c.Request, nil)
		if errUpgrade != nil {
			log.WithError(errUpgrade).Debug("websocket upgrade failed")
			return
		}
		defer func() {
			service.Unsubscribe(conn)
			_ = conn.Close()
		}()

		for {
			var msg waitForLogin
			if errRead := conn.ReadJSON(&msg); errRead != nil {
				return
			}
			if msg.Hash == "" {
				continue
			}
			if errSubscribe := service.Subscribe(c.Request.Context(), msg.Hash, conn); errSubscribe != nil {
				log.WithError(errSubscribe).WithField("hash", msg.Hash).
					Warn("login subscription failed")
			}
		}
	}
}
