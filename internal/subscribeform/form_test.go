package subscribeform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEndpoint(t *testing.T, status int, body string) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, subscribePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["email"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/"), &calls
}

func TestSubmitClientSideChecks(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  Notification
	}{
		{"empty", "", notifyEmailRequired},
		{"no domain", "jane@", notifyInvalidEmail},
		{"no tld", "jane@example", notifyInvalidEmail},
		{"whitespace", "jane doe@example.com", notifyInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newEndpoint(t, http.StatusCreated, `{"success":true}`)
			form := NewForm(client, zerolog.Nop())
			form.SetEmail(tt.email)

			n, handled := form.Submit(context.Background())
			require.True(t, handled)
			assert.Equal(t, tt.want, n)
			assert.True(t, n.Destructive)
			assert.Zero(t, atomic.LoadInt32(calls))
			assert.Equal(t, tt.email, form.Email())
		})
	}
}

func TestSubmitOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      Notification
		wantEmail string
	}{
		{
			name:   "created",
			status: http.StatusCreated,
			body:   `{"success":true,"message":"Successfully subscribed to newsletter!"}`,
			want:   notifySubscribed,
		},
		{
			name:      "already subscribed",
			status:    http.StatusConflict,
			body:      `{"success":false,"error":"This email is already subscribed to our newsletter"}`,
			want:      notifyAlreadySubscribed,
			wantEmail: "jane@example.com",
		},
		{
			name:      "server error with message",
			status:    http.StatusInternalServerError,
			body:      `{"success":false,"error":"Failed to subscribe. Please try again later."}`,
			want:      Notification{Title: "Subscription failed", Description: "Failed to subscribe. Please try again later.", Destructive: true},
			wantEmail: "jane@example.com",
		},
		{
			name:      "error without message",
			status:    http.StatusBadRequest,
			body:      `{"success":false}`,
			want:      Notification{Title: "Subscription failed", Description: "Please try again later", Destructive: true},
			wantEmail: "jane@example.com",
		},
		{
			name:      "undecodable body",
			status:    http.StatusBadGateway,
			body:      `<html>bad gateway</html>`,
			want:      notifyUnexpected,
			wantEmail: "jane@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newEndpoint(t, tt.status, tt.body)
			form := NewForm(client, zerolog.Nop())
			form.SetEmail("jane@example.com")

			n, handled := form.Submit(context.Background())
			require.True(t, handled)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.wantEmail, form.Email())
			assert.EqualValues(t, 1, atomic.LoadInt32(calls))
			assert.False(t, form.Submitting())
			assert.Equal(t, "Subscribe", form.ButtonLabel())
		})
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	form := NewForm(NewClient(srv.URL), zerolog.Nop())
	form.SetEmail("jane@example.com")

	n, handled := form.Submit(context.Background())
	require.True(t, handled)
	assert.Equal(t, notifyUnexpected, n)
	assert.Equal(t, "jane@example.com", form.Email())
}

type blockingSubscriber struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubscriber) Subscribe(ctx context.Context, email string) (*Result, error) {
	close(b.entered)
	<-b.release
	return &Result{StatusCode: http.StatusCreated, Success: true}, nil
}

func TestSubmitWhileInFlight(t *testing.T) {
	sub := &blockingSubscriber{entered: make(chan struct{}), release: make(chan struct{})}
	form := NewForm(sub, zerolog.Nop())
	form.SetEmail("jane@example.com")

	done := make(chan Notification)
	go func() {
		n, _ := form.Submit(context.Background())
		done <- n
	}()
	<-sub.entered

	assert.True(t, form.InputDisabled())
	assert.Equal(t, "Subscribing...", form.ButtonLabel())

	_, handled := form.Submit(context.Background())
	assert.False(t, handled)

	form.SetEmail("other@example.com")
	assert.Equal(t, "jane@example.com", form.Email())

	close(sub.release)
	assert.Equal(t, notifySubscribed, <-done)
	assert.False(t, form.InputDisabled())
	assert.Empty(t, form.Email())
}
