package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 128
)

// Stored responses replace the pending marker only while the marker is still ours.
var (
	completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
end
return false`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the stored 2xx response of a request that carried the same
// Idempotency-Key. Keys are scoped to the caller and the route. A nil client disables it.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl, prefix: "library:idempotency:"}
}

func (m *Idempotency) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if m == nil || m.client == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "idempotency key is too long")
			return
		}

		ctx := r.Context()
		storeKey := m.storeKey(r, key)
		fingerprint := r.Method + " " + r.URL.RequestURI()

		pending, err := json.Marshal(idempotencyRecord{Pending: true, Owner: uuid.NewString(), Fingerprint: fingerprint})
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		claimed, err := m.client.SetNX(ctx, storeKey, pending, m.ttl).Result()
		if err != nil {
			slog.Warn("idempotency store unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !claimed {
			m.replay(ctx, w, storeKey, fingerprint)
			return
		}

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// The client may be gone; the outcome still has to be recorded.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if rec.status < 200 || rec.status >= 300 {
			if err := releaseScript.Run(storeCtx, m.client, []string{storeKey}, pending).Err(); err != nil {
				slog.Warn("failed to release idempotency key", "key", key, "error", err)
			}
			return
		}

		done, err := json.Marshal(idempotencyRecord{
			Fingerprint: fingerprint,
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			return
		}
		err = completeScript.Run(storeCtx, m.client, []string{storeKey}, pending, done, m.ttl.Milliseconds()).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			slog.Warn("failed to store idempotent response", "key", key, "error", err)
		}
	})
}

func (m *Idempotency) replay(ctx context.Context, w http.ResponseWriter, storeKey string, fingerprint string) {
	raw, err := m.client.Get(ctx, storeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		writeJSONError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is being processed")
		return
	}
	if err != nil {
		slog.Warn("idempotency lookup failed", "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "idempotency store unavailable")
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		writeJSONError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is being processed")
		return
	}

	switch {
	case record.Fingerprint != fingerprint:
		writeJSONError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "idempotency key was used for a different request")
	case record.Pending:
		writeJSONError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is being processed")
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func (m *Idempotency) storeKey(r *http.Request, key string) string {
	caller := "anonymous"
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		caller = principal.Identifier
	}
	return m.prefix + caller + ":" + r.URL.Path + ":" + key
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *recordingWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
