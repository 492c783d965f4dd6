package handlers

import (
	"mia/services/billing"
	"mia/services/booking"
	"mia/services/conversation"
	"mia/services/identity"
	"mia/services/profile"
	"mia/services/session"
)

// ReconcileScheduler queues a background retry of a payment reconciliation.
type ReconcileScheduler interface {
	Schedule(sessionID string) error
}

// HandlerBundle groups the services behind the HTTP endpoints.
type HandlerBundle struct {
	Identity identity.Service
	Gate     session.Gate
	Chat     conversation.Engine
	Bookings booking.Orchestrator
	Billing  billing.BillingService
	Profiles profile.ProfileService
	Retries  ReconcileScheduler

	// WebhookSecret verifies processor webhooks; webhooks are refused when empty.
	WebhookSecret string
}
