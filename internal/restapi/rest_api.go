package restapi

import (
	"time"

	"controlroom.busops.org/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
	now         func() time.Time
	// keepAlive is how often an idle marker stream sends a comment line.
	keepAlive time.Duration
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application: app,
		rateLimiter: newRateLimiter(app.Config.RateLimit, time.Second),
		now:         time.Now,
		keepAlive:   15 * time.Second,
	}
}

// Close stops the rate limiter's cleanup loop.
func (api *RestAPI) Close() {
	api.rateLimiter.Stop()
}
