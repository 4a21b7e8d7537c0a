package domain

import (
	"context"
	"regexp"
	"time"
)

// emailPattern is the permissive local@domain.tld shape shared by the endpoint and the form.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Subscriber is a newsletter subscription record
type Subscriber struct {
	ID        string    `bson:"_id" json:"id"`
	Email     string    `bson:"email" json:"email"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	Source    string    `bson:"source" json:"source"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SubscriberSourceWebsite marks subscriptions coming from the storefront form
const SubscriberSourceWebsite = "website"

// IsValidEmail reports whether email has the local@domain.tld shape.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateEmail returns ErrEmailRequired or ErrInvalidEmail, or nil when the address can be sent onward.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !IsValidEmail(email) {
		return ErrInvalidEmail
	}
	return nil
}

// NewsletterRepository persists subscribers.
// Create returns ErrDuplicateEmail when the address is already stored.
type NewsletterRepository interface {
	Create(ctx context.Context, subscriber *Subscriber) error
}

// NewsletterService defines the subscription use case
type NewsletterService interface {
	Subscribe(ctx context.Context, email string) (*Subscriber, error)
}
