package subscribeform

import (
	"context"
	"net/http"
	"sync"

	"github.com/libaas-store/storefront/internal/domain"
	"github.com/rs/zerolog"
)

const (
	labelIdle       = "Subscribe"
	labelSubmitting = "Subscribing..."
)

// Notification is the toast shown after a submit
type Notification struct {
	Title       string
	Description string
	Destructive bool
}

var (
	notifyEmailRequired = Notification{
		Title:       "Email required",
		Description: "Please enter your email address",
		Destructive: true,
	}
	notifyInvalidEmail = Notification{
		Title:       "Invalid email",
		Description: "Please enter a valid email address",
		Destructive: true,
	}
	notifyAlreadySubscribed = Notification{
		Title:       "Already subscribed",
		Description: "This email is already subscribed to our newsletter",
		Destructive: true,
	}
	notifyUnexpected = Notification{
		Title:       "Subscription failed",
		Description: "An unexpected error occurred. Please try again later.",
		Destructive: true,
	}
	notifySubscribed = Notification{
		Title:       "Successfully subscribed!",
		Description: "Thank you for subscribing to our newsletter. You'll receive updates about our latest collections and exclusive offers.",
	}
)

// Form holds the email input and whether a submission is in flight.
// It is safe for concurrent use.
type Form struct {
	mu         sync.Mutex
	client     Subscriber
	email      string
	submitting bool
	log        zerolog.Logger
}

// NewForm creates an empty form that submits through client
func NewForm(client Subscriber, log zerolog.Logger) *Form {
	return &Form{
		client: client,
		log:    log.With().Str("component", "subscribe-form").Logger(),
	}
}

// SetEmail updates the input value. Ignored while the input is disabled.
func (f *Form) SetEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.submitting {
		f.email = email
	}
}

// Email returns the current input value
func (f *Form) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

// Submitting reports whether a request is in flight
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// InputDisabled reports whether the email input accepts edits
func (f *Form) InputDisabled() bool {
	return f.Submitting()
}

// ButtonLabel returns the submit button text
func (f *Form) ButtonLabel() string {
	if f.Submitting() {
		return labelSubmitting
	}
	return labelIdle
}

// Submit validates the input and sends it to the endpoint. It returns false, and no notification,
// when another submission is already in flight. The input is cleared only on success.
func (f *Form) Submit(ctx context.Context) (Notification, bool) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return Notification{}, false
	}
	email := f.email
	if email == "" {
		f.mu.Unlock()
		return notifyEmailRequired, true
	}
	if !domain.IsValidEmail(email) {
		f.mu.Unlock()
		return notifyInvalidEmail, true
	}
	f.submitting = true
	f.mu.Unlock()

	result, err := f.client.Subscribe(ctx, email)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if err != nil {
		f.log.Error().Err(err).Msg("newsletter subscription error")
		return notifyUnexpected, true
	}

	switch {
	case result.OK():
		f.email = ""
		return notifySubscribed, true
	case result.StatusCode == http.StatusConflict:
		return notifyAlreadySubscribed, true
	default:
		description := result.Error
		if description == "" {
			description = "Please try again later"
		}
		return Notification{Title: "Subscription failed", Description: description, Destructive: true}, true
	}
}
