package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/marketplace-backend/pkg/redis"
)

const (
	// IdempotencyHeader names the client-chosen key.
	IdempotencyHeader = "Idempotency-Key"

	standardReplayTTL = 24 * time.Hour
	moneyReplayTTL    = 7 * 24 * time.Hour
	inFlightTTL       = 2 * time.Minute
	maxKeyLength      = 255
)

// replayRecord is what Redis holds under one key. A record with Pending set
// marks a request that is still running.
type replayRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes mutating routes safe to retry. Routes opt in with
// Standard or MoneyMovement, which differ only in how long a response is
// replayed.
type Idempotency struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func NewIdempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) *Idempotency {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Idempotency{store: store, logg: logg}
}

func (i *Idempotency) Standard(next http.Handler) http.Handler {
	return i.guard(standardReplayTTL, next)
}

// MoneyMovement covers checkout and payout mutations.
func (i *Idempotency) MoneyMovement(next http.Handler) http.Handler {
	return i.guard(moneyReplayTTL, next)
}

func (i *Idempotency) guard(ttl time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i == nil || i.store == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if clientKey == "" || len(clientKey) > maxKeyLength {
			responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required (max 255 chars)"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		hash := requestHash(r, body)
		key := i.store.IdempotencyKey(callerScope(r), clientKey)

		pending, _ := json.Marshal(replayRecord{Pending: true, RequestHash: hash})
		claimed, err := i.store.SetNX(ctx, key, string(pending), inFlightTTL)
		if err != nil {
			responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if !claimed {
			i.replay(w, r, key, hash)
			return
		}

		capture := &responseCapture{ResponseWriter: w}
		next.ServeHTTP(capture, r)
		i.remember(r, key, hash, capture, ttl)
	})
}

// replay answers a repeated key from the stored record.
func (i *Idempotency) replay(w http.ResponseWriter, r *http.Request, key, hash string) {
	ctx := r.Context()
	stored, err := i.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && stored == "") {
		// Expired between SETNX and GET; the client can simply retry.
		responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request state changed, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var record replayRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case record.Pending:
		responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// remember swaps the in-flight marker for the final response. Server errors
// are not kept so the client may retry with the same key.
func (i *Idempotency) remember(r *http.Request, key, hash string, capture *responseCapture, ttl time.Duration) {
	ctx := r.Context()
	if err := i.store.Del(ctx, key); err != nil {
		i.logg.Error(ctx, "clear idempotency marker", err)
		return
	}
	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		return
	}
	payload, err := json.Marshal(replayRecord{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: hash,
	})
	if err != nil {
		i.logg.Error(ctx, "encode idempotency record", err)
		return
	}
	if _, err := i.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		i.logg.Error(ctx, "persist idempotency record", err)
	}
}

// callerScope keeps keys private to one caller and one route.
func callerScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		RoleFromContext(r.Context()),
		r.Method,
		strings.TrimSuffix(r.URL.Path, "/"),
	}, "|")
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.URL.RawQuery))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
