package idempotency

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/MikeMC777/ecom-points/internal/httpx"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLen      = 255
)

type recorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Middleware caches 2xx responses per (caller, route, key). A nil store turns
// it into a no-op. Store failures fall through to normal handling.
func Middleware(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if store == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, httpx.ErrorBody{Error: "Idempotency-Key is too long"})
			return
		}

		var uid int64
		if id, ok := httpx.IdentityFrom(c); ok {
			uid = id.UserID
		}
		scoped := fmt.Sprintf("%d:%s:%s:%s", uid, c.Request.Method, c.FullPath(), key)
		ctx := c.Request.Context()

		cached, claimed, err := store.Begin(ctx, scoped)
		if err != nil {
			log.WithError(err).Warn("[idempotency] store unavailable, handling request normally")
			c.Next()
			return
		}
		if cached != nil {
			c.Header(HeaderReplayed, "true")
			c.Data(cached.Status, cached.ContentType, cached.Body)
			c.Abort()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, httpx.ErrorBody{Error: "a request with this Idempotency-Key is still in progress"})
			return
		}

		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec

		// the request context may already be canceled once the client is gone
		finished := false
		defer func() {
			if finished {
				return
			}
			bg, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := store.Release(bg, scoped); err != nil {
				log.WithError(err).Warn("[idempotency] failed to release key")
			}
		}()

		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = store.Finish(bg, scoped, Response{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			log.WithError(err).Warn("[idempotency] failed to record outcome")
			return
		}
		finished = true
	}
}
