package http

import (
	"github.com/plated-app/plated-api/internal/application/conversation"
	"github.com/plated-app/plated-api/internal/application/device"
	"github.com/plated-app/plated-api/internal/application/notification"
	"github.com/plated-app/plated-api/internal/application/post"
	"github.com/plated-app/plated-api/internal/application/profile"
	"github.com/plated-app/plated-api/internal/application/verification"
	"github.com/plated-app/plated-api/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps holds the application services and auth backend used by the router.
type Deps struct {
	// Profiles also backs the disabled-account check on authenticated
	// routes, which is skipped when nil.
	Profiles      profile.Service
	Verification  verification.Service
	Conversations conversation.Service
	Notifications notification.Service
	Devices       device.Service
	Posts         post.Service

	// Tokens verifies bearer tokens. When nil every authenticated route
	// answers 401.
	Tokens middleware.TokenVerifier
	// Gatherer backs /metrics. When nil the endpoint is not mounted.
	Gatherer prometheus.Gatherer
}
