package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func clientRequest(method, url string, actor auth.Actor, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	return req.WithContext(WithActor(req.Context(), actor))
}

var testClient = auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleClient}

func keyedRequest(actor auth.Actor, key, body string) *http.Request {
	req := clientRequest(http.MethodPost, "/api/v1/orders", actor, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestIdempotencyRejectsMissingOrOversizedKey(t *testing.T) {
	cases := map[string]string{
		"missing":   "",
		"blank":     "   ",
		"oversized": strings.Repeat("k", maxKeyLength+1),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})
			rec := httptest.NewRecorder()
			NewIdempotency(newFakeStore(), nil).Standard(handler).ServeHTTP(rec, keyedRequest(testClient, key, `{}`))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if called {
				t.Fatalf("handler ran without a usable key")
			}
		})
	}
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	idem := NewIdempotency(newFakeStore(), nil)
	var calls int
	handler := idem.Standard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ord-1"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(testClient, "abc", `{"qty":2}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", first.Code)
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest(testClient, "abc", `{"qty":2}`))
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type not preserved")
	}
	if replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("replay marker header missing")
	}
	if replay.Body.String() != `{"id":"ord-1"}` {
		t.Fatalf("unexpected replay body %q", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	idem := NewIdempotency(newFakeStore(), nil)
	handler := idem.Standard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(testClient, "xyz", `{"qty":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(testClient, "xyz", `{"qty":9}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	idem := NewIdempotency(newFakeStore(), nil)
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = idem.Standard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, keyedRequest(testClient, "dup", `{"qty":1}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := httptest.NewRecorder()
	handler.ServeHTTP(outer, keyedRequest(testClient, "dup", `{"qty":1}`))

	if outer.Code != http.StatusCreated {
		t.Fatalf("expected original request to finish with 201, got %d", outer.Code)
	}
	if inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %d", inner.Code)
	}
	if code := errorCode(t, inner); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, code)
	}
}

func TestIdempotencyDoesNotKeepServerErrors(t *testing.T) {
	store := newFakeStore()
	idem := NewIdempotency(store, nil)
	var calls int
	handler := idem.MoneyMovement(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(testClient, "retry-me", `{}`))
	if len(store.data) != 0 {
		t.Fatalf("expected no record after 502, got %d", len(store.data))
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest(testClient, "retry-me", `{}`))
	if second.Code != http.StatusOK || calls != 2 {
		t.Fatalf("expected retry to run the handler again, code=%d calls=%d", second.Code, calls)
	}
}

func TestIdempotencyPresetTTLs(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	cases := []struct {
		name   string
		wrap   func(*Idempotency) http.Handler
		expect time.Duration
	}{
		{"standard", func(i *Idempotency) http.Handler { return i.Standard(ok) }, standardReplayTTL},
		{"money movement", func(i *Idempotency) http.Handler { return i.MoneyMovement(ok) }, moneyReplayTTL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			tc.wrap(NewIdempotency(store, nil)).ServeHTTP(httptest.NewRecorder(), keyedRequest(testClient, "k", `{}`))
			if len(store.ttls) != 1 {
				t.Fatalf("expected one stored record, got %d", len(store.ttls))
			}
			for _, ttl := range store.ttls {
				if ttl != tc.expect {
					t.Fatalf("expected ttl %v got %v", tc.expect, ttl)
				}
			}
		})
	}
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	idem := NewIdempotency(newFakeStore(), nil)
	var calls int
	handler := idem.Standard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	other := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleClient}
	for _, actor := range []auth.Actor{testClient, other} {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(actor, "shared", `{}`))
	}
	if calls != 2 {
		t.Fatalf("expected each caller to execute once, got %d calls", calls)
	}
}

func TestIdempotencyWithoutStorePassesThrough(t *testing.T) {
	called := false
	handler := NewIdempotency(nil, nil).Standard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(testClient, "", `{}`))
	if !called {
		t.Fatalf("expected handler to run when no store is configured")
	}
}
