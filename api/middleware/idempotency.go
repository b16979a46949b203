package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	checkoutReplayTTL = 7 * 24 * time.Hour
	defaultReplayTTL  = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 2 * time.Minute
)

// ReplayStore is the shared store behind request idempotency.
type ReplayStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// idempotentRoutes lists the mutating routes that require an Idempotency-Key.
// Templates use path.Match syntax; * matches one path segment.
var idempotentRoutes = []struct {
	method   string
	template string
	ttl      time.Duration
}{
	{http.MethodPost, "/api/v1/orders", checkoutReplayTTL},
	{http.MethodPost, "/api/v1/orders/*/payment-preference", defaultReplayTTL},
	{http.MethodPost, "/api/admin/v1/orders/*/status", defaultReplayTTL},
}

type storedReply struct {
	RequestHash string `json:"request_hash"`
	InFlight    bool   `json:"in_flight,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency makes the listed routes safe to retry. The first request claims the key,
// runs, and stores its reply; a retry with the same body gets that reply back, a retry
// with a different body or one racing the original gets 409. Server errors are not
// stored so the client can retry them.
func Idempotency(store ReplayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := fingerprint(body)
			key := store.IdempotencyKey(replayScope(r), clientKey)

			claim, _ := json.Marshal(storedReply{RequestHash: hash, InFlight: true})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, logg, w, store, key, hash)
				return
			}

			capture := &replyCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			status := capture.statusCode()

			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			reply, _ := json.Marshal(storedReply{
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			})
			if err := store.Set(ctx, key, string(reply), ttl); err != nil && logg != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store ReplayStore, key, hash string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The original finished with a server error and released the key between our calls.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is being retried; try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var reply storedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case reply.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case reply.InFlight:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		writeReply(w, reply)
	}
}

func writeReply(w http.ResponseWriter, reply storedReply) {
	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(reply.Status)
	if body, err := base64.StdEncoding.DecodeString(reply.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// replayScope keys replies by caller and route so the same client key on two routes never collides.
func replayScope(r *http.Request) string {
	return strings.Join([]string{AdminSubjectFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// replayTTL matches on the request path; group middleware runs before chi resolves the route pattern.
func replayTTL(method, requestPath string) (time.Duration, bool) {
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if ok, _ := path.Match(route.template, requestPath); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

type replyCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *replyCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *replyCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *replyCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
