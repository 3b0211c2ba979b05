package auth

import (
	"context"
	"log/slog"
	"time"
)

// Watchdog intervals. Refresh runs slightly inside the 5-minute
// refresh-ahead window so a session is always visited at least once before
// its access token lapses.
const (
	refreshInterval    = 4 * time.Minute
	inactivityInterval = 5 * time.Minute
)

// Watchdog runs the two periodic session checks: proactive token refresh
// and inactivity expiry. The two tickers are independent and may both
// decide to kill the same session; expiry is idempotent so the race is
// harmless.
type Watchdog struct {
	manager *Manager
}

// NewWatchdog creates a watchdog over the given manager.
func NewWatchdog(manager *Manager) *Watchdog {
	return &Watchdog{manager: manager}
}

// Run starts both watchdog loops and blocks until ctx is cancelled.
// Intended to be launched as a goroutine from the app bootstrap.
func (w *Watchdog) Run(ctx context.Context) {
	refreshTicker := time.NewTicker(refreshInterval)
	inactivityTicker := time.NewTicker(inactivityInterval)
	defer refreshTicker.Stop()
	defer inactivityTicker.Stop()

	slog.Info("session watchdogs started",
		slog.Duration("refresh_interval", refreshInterval),
		slog.Duration("inactivity_interval", inactivityInterval),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session watchdogs stopped")
			return
		case <-refreshTicker.C:
			w.refreshPass(ctx)
		case <-inactivityTicker.C:
			w.inactivityPass(ctx)
		}
	}
}

// refreshPass visits every live session and extends those whose access
// token is inside the refresh-ahead window. A session that cannot be
// extended is destroyed — a broken session must not linger half-working.
// OTP state is never touched here.
func (w *Watchdog) refreshPass(ctx context.Context) {
	m := w.manager
	now := m.now().UTC()

	err := m.store.Each(ctx, func(session *Session) {
		if session.AccessExpiresAt.Sub(now) >= refreshAhead {
			return
		}

		session.AccessExpiresAt = now.Add(m.tokens.AccessTTL())
		if err := m.store.Save(ctx, session); err != nil {
			slog.Error("proactive refresh failed, destroying session",
				slog.String("session_id", session.ID),
				slog.Any("error", err),
			)
			m.expireSession(ctx, session, reasonRefreshFailed)
		}
	})
	if err != nil {
		slog.Error("refresh pass aborted", slog.Any("error", err))
	}
}

// inactivityPass destroys verified sessions idle past the 6-hour cutoff.
// Pre-OTP sessions are measured from their creation-time stamp, which
// SignIn wrote when the code was dispatched.
func (w *Watchdog) inactivityPass(ctx context.Context) {
	m := w.manager
	now := m.now().UTC()

	err := m.store.Each(ctx, func(session *Session) {
		last, err := m.store.LastActivity(ctx, session.ID)
		if err != nil {
			// No stamp at all: fall back to session creation.
			last = session.CreatedAt
		}

		if now.Sub(last) > inactivityTimeout {
			m.expireSession(ctx, session, reasonInactivityTimeout)
		}
	})
	if err != nil {
		slog.Error("inactivity pass aborted", slog.Any("error", err))
	}
}
