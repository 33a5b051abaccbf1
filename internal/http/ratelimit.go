package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 3 * time.Minute
	limiterSweepInterval = time.Minute
)

// ActorLimiter keeps one token bucket per actor. Buckets idle for longer than
// the time needed to refill them are dropped on a periodic sweep.
type ActorLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	nextSweep time.Time
	actors    map[string]*actorBucket
}

type actorBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewActorLimiter allows perSecond events per actor with the given burst.
// A non-positive rate disables limiting.
func NewActorLimiter(perSecond float64, burst int) *ActorLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	idle := limiterIdleTTL
	if perSecond <= 0 {
		limit = rate.Inf
	} else if refill := time.Duration(float64(burst) / perSecond * float64(time.Second)); refill > idle {
		idle = refill
	}
	return &ActorLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: idle,
		actors:  make(map[string]*actorBucket),
	}
}

// AllowAt reports whether the actor may proceed at t and consumes a token if so.
func (l *ActorLimiter) AllowAt(actorID string, t time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	l.sweepLocked(t)
	bucket, ok := l.actors[actorID]
	if !ok {
		bucket = &actorBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.actors[actorID] = bucket
	}
	if t.After(bucket.lastSeen) {
		bucket.lastSeen = t
	}
	l.mu.Unlock()
	return bucket.limiter.AllowN(t, 1)
}

func (l *ActorLimiter) sweepLocked(t time.Time) {
	if t.Before(l.nextSweep) {
		return
	}
	for actorID, bucket := range l.actors {
		if t.Sub(bucket.lastSeen) > l.idleTTL {
			delete(l.actors, actorID)
		}
	}
	l.nextSweep = t.Add(limiterSweepInterval)
}

func (l *ActorLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actors)
}

// Middleware rejects requests from actors that exhausted their bucket with
// 429. It must run after RequireActor.
func (l *ActorLimiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := PrincipalFromContext(r.Context())
			if !l.AllowAt(principal.UserID, time.Now()) {
				handlerLogger(r.Context(), logger, "ActorLimiter", "Allow", "principal_id", principal.UserID).
					WarnContext(r.Context(), "rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{
					ErrorCode: "RATE_LIMITED",
					Message:   errRateLimited.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
