package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifiedFixture performs a full two-factor login and returns the live
// verified session.
func verifiedFixture(t *testing.T) (*fixture, *Session) {
	t.Helper()
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)

	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	token, err := f.manager.VerifyOTP(context.Background(), session.ID, f.sender.lastCode())
	require.NoError(t, err)

	session, err = f.manager.Validate(context.Background(), token)
	require.NoError(t, err)
	require.True(t, session.OTPVerified)
	return f, session
}

func TestInactivityPassExpiresIdleSession(t *testing.T) {
	f, session := verifiedFixture(t)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	f.clock.Advance(inactivityTimeout + time.Second)
	w.inactivityPass(ctx)

	_, err := f.store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, f.seclog.has("session_expired"))
	assert.Contains(t, f.seclog.reasons, reasonInactivityTimeout)
}

func TestInactivityPassSparesActiveSession(t *testing.T) {
	f, session := verifiedFixture(t)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	// Just inside the cutoff: 5h59m idle survives.
	f.clock.Advance(inactivityTimeout - time.Minute)
	w.inactivityPass(ctx)

	_, err := f.store.Get(ctx, session.ID)
	assert.NoError(t, err)
}

func TestInactivityClockResetsOnActivity(t *testing.T) {
	f, session := verifiedFixture(t)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	// 5 hours in, the user does something; 2 more hours later the total
	// is past 6h but the idle gap is only 2h.
	f.clock.Advance(5 * time.Hour)
	f.manager.RecordActivity(ctx, session)
	f.clock.Advance(2 * time.Hour)
	w.inactivityPass(ctx)

	_, err := f.store.Get(ctx, session.ID)
	assert.NoError(t, err)
}

func TestInactivityPassExpiresUnverifiedSession(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	// A session stuck before OTP verification still ages out: its clock
	// started when the code was dispatched and nothing can move it.
	f.clock.Advance(inactivityTimeout + time.Second)
	w.inactivityPass(ctx)

	_, err = f.store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefreshPassExtendsNearExpiry(t *testing.T) {
	f, session := verifiedFixture(t)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	// AccessTTL in the fixture is 1h; 57 minutes in, the token is inside
	// the 5-minute refresh-ahead window.
	f.clock.Advance(57 * time.Minute)
	w.refreshPass(ctx)

	refreshed, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.AccessExpiresAt.After(session.AccessExpiresAt),
		"expiry must have been pushed out")
	assert.True(t, refreshed.OTPVerified, "refresh must not touch otp state")
}

func TestRefreshPassLeavesFreshSessionAlone(t *testing.T) {
	f, session := verifiedFixture(t)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	f.clock.Advance(10 * time.Minute)
	w.refreshPass(ctx)

	got, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.AccessExpiresAt.Unix(), got.AccessExpiresAt.Unix())
}

func TestRefreshPassNeverPromotesUnverified(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	w := NewWatchdog(f.manager)
	ctx := context.Background()

	f.clock.Advance(57 * time.Minute)
	w.refreshPass(ctx)

	got, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.OTPVerified)
}

func TestWatchdogRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	w := NewWatchdog(f.manager)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop on context cancel")
	}
}
