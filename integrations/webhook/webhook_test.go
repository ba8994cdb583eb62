package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "event", r.Header.Get("X-Progression-Kind"))
		_, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.OnEvent(core.NewLevelUp("u1", 2, 10))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
}

func TestSink_RecordSignsNotification(t *testing.T) {
	secret := []byte("s3cret")
	var got core.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, Verify(secret, body, r.Header.Get(SignatureHeader)))
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithSecret(string(secret)))
	n := core.Notification{ID: "n1", UserID: "u1", Kind: core.NotificationUnlocked, Title: "New achievement unlocked!"}
	require.NoError(t, sink.Record(context.Background(), n))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, core.NotificationUnlocked, got.Kind)
}

func TestSink_RecordReportsFailures(t *testing.T) {
	var hits int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&hits, 1) }))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	sink := New([]string{broken.URL, ok.URL})
	err := sink.Record(context.Background(), core.Notification{ID: "n1", UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "remaining endpoints still receive the notification")
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	sig := Sign([]byte("k"), []byte(`{"a":1}`))
	assert.False(t, Verify([]byte("k"), []byte(`{"a":2}`), sig))
}
