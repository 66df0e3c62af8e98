package controller

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsBuffer    = 32
)

type invalidationMessage struct {
	Type string    `json:"type"`
	Tags []string  `json:"tags,omitempty"`
	All  bool      `json:"all,omitempty"`
	At   time.Time `json:"at"`
}

// InvalidationController streams invalidated tag sets to independently rendered
// client surfaces over a websocket.
type InvalidationController struct {
	bus      *invalidation.Bus
	upgrader websocket.Upgrader
}

// NewInvalidationController accepts upgrades from same-host pages and from the
// comma-separated allowedOrigins ("*" allows any origin).
func NewInvalidationController(bus *invalidation.Bus, allowedOrigins string) *InvalidationController {
	return &InvalidationController{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Stream handles GET /ws/invalidations. Repeated "tag" query values restrict the
// stream to events touching those tags; "all" events are always delivered.
func (ic *InvalidationController) Stream(c *gin.Context) {
	log := logger.WithComponent("ws")
	filter := invalidation.NewSet(tagsFromQuery(c.QueryArray("tag"))...)

	conn, err := ic.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debugf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// reader: only control frames matter; a read error means the client is gone
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := ic.bus.Subscribe(ctx, wsBuffer)
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	if err := writeWS(conn, invalidationMessage{Type: "subscribed", Tags: filter.Strings(), At: time.Now().UTC()}); err != nil {
		return
	}
	log.Debugf("client subscribed to %s", filter)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !ev.All && !matches(filter, ev.Tags) {
				continue
			}
			if err := writeWS(conn, invalidationMessage{Type: "invalidate", Tags: ev.Tags, All: ev.All, At: ev.At}); err != nil {
				log.Debugf("client gone: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, msg invalidationMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func tagsFromQuery(values []string) []invalidation.Tag {
	out := make([]invalidation.Tag, 0, len(values))
	for _, v := range values {
		out = append(out, invalidation.Tag(strings.TrimSpace(v)))
	}
	return out
}

// matches reports whether tags touch filter; an empty filter matches everything.
func matches(filter invalidation.Set, tags []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range tags {
		if filter.Contains(invalidation.Tag(t)) {
			return true
		}
	}
	return false
}

func originChecker(allowedOrigins string) func(r *http.Request) bool {
	wildcard := strings.TrimSpace(allowedOrigins) == "*"
	allowed := make(map[string]struct{})
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
