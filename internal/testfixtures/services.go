package testfixtures

import (
	"log/slog"
	"time"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services groups the coordinator services wired to one storage harness.
type Services struct {
	Points       *application.PointService
	Claims       *application.ClaimService
	Availability *application.AvailabilityService
	Stats        *application.StatsService
	Profiles     *application.ProfileService
}

// NewServices wires every service to the harness repositories.
func (f *ServiceFactory) NewServices(h *SQLiteHarness, publisher application.EventPublisher) Services {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	return Services{
		Points:       application.NewPointServiceWithLogger(h.Points, h.Claims, ids, now, f.Logger),
		Claims:       application.NewClaimServiceWithLogger(h.Points, h.Claims, publisher, ids, now, 0, f.Logger),
		Availability: application.NewAvailabilityService(h.Points, h.Claims, h.Profiles, now, application.AvailabilityOptions{Logger: f.Logger}),
		Stats:        application.NewStatsService(h.Claims, f.Logger),
		Profiles:     application.NewProfileService(h.Profiles, now, f.Logger),
	}
}
