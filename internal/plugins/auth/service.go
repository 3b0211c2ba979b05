package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tribuna-digital/portal/internal/apperror"
	"github.com/tribuna-digital/portal/internal/plugins/otp"
)

// inactivityTimeout is the hard cap on idle time for a verified session.
// Once the gap since the last activity stamp exceeds it, the session is
// destroyed regardless of token validity.
const inactivityTimeout = 6 * time.Hour

// refreshAhead is how close to access-token expiry the refresh watchdog
// steps in and proactively extends the session.
const refreshAhead = 5 * time.Minute

// SecurityLog receives security-relevant events from the manager. The audit
// plugin provides the production implementation; tests use a recorder.
type SecurityLog interface {
	LoginFailed(ctx context.Context, email string, cause error)
	OTPRequested(ctx context.Context, userID, email string)
	OTPVerified(ctx context.Context, userID, email string)
	SessionExpired(ctx context.Context, userID, email, reason string)
	Logout(ctx context.Context, userID, email string)
}

// Manager orchestrates the full login lifecycle: password check, OTP
// issuance and verification, token refresh, and sign-out. It owns no HTTP
// concerns — handlers and watchdogs drive it.
type Manager struct {
	users  UserRepository
	codes  otp.CodeRepository
	sender otp.Sender
	store  *SessionStore
	tokens *TokenIssuer
	seclog SecurityLog

	// now is swappable so tests can move the clock.
	now func() time.Time
}

// NewManager wires a session manager from its dependencies.
func NewManager(users UserRepository, codes otp.CodeRepository, sender otp.Sender,
	store *SessionStore, tokens *TokenIssuer, seclog SecurityLog) *Manager {
	return &Manager{
		users:  users,
		codes:  codes,
		sender: sender,
		store:  store,
		tokens: tokens,
		seclog: seclog,
		now:    time.Now,
	}
}

// SignIn authenticates credentials and, on success, immediately issues a
// one-time code to the user's WhatsApp. The returned session is NOT yet
// usable on protected routes: OTPVerified is false until VerifyOTP
// succeeds. If OTP issuance fails, the half-created session is destroyed
// so no dangling first-factor-only state survives, and the OTP error is
// surfaced instead of a generic success.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.NewBadRequest("email and password are required")
	}

	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the email exists -- use generic message.
		m.seclog.LoginFailed(ctx, email, err)
		loginFailures.Inc()
		return nil, apperror.NewUnauthorized("invalid email or password")
	}

	if !VerifyPassword(password, user.PasswordHash) {
		m.seclog.LoginFailed(ctx, email, errors.New("password mismatch"))
		loginFailures.Inc()
		return nil, apperror.NewUnauthorized("invalid email or password")
	}

	now := m.now().UTC()

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating refresh token: %w", err))
	}

	session := &Session{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		Email:           user.Email,
		Role:            user.Role,
		OTPVerified:     false,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(m.tokens.AccessTTL()),
		CreatedAt:       now,
	}

	if err := m.store.Save(ctx, session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	if err := m.requestOTP(ctx, user); err != nil {
		// No half-authenticated state may survive a failed OTP dispatch.
		if delErr := m.store.Delete(ctx, session.ID); delErr != nil {
			slog.Error("failed to roll back session after otp failure",
				slog.String("session_id", session.ID),
				slog.Any("error", delErr),
			)
		}
		return nil, err
	}

	// The inactivity clock starts at OTP request, before the second factor
	// completes. Intentional: it measures total elapsed time since the
	// first factor, not time since full login.
	if err := m.store.TouchActivity(ctx, session.ID, now); err != nil {
		slog.Warn("failed to stamp initial activity",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}

	accessToken, err := m.tokens.Issue(session, now)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	// Last-login update is fire-and-forget, non-critical.
	if err := m.users.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("first factor accepted, otp dispatched",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: session.RefreshToken,
		RequiresOTP:  true,
	}, nil
}

// ResendOTP issues a fresh code for an existing pre-verification session.
// The previous code stops verifying the moment the new one is created.
func (m *Manager) ResendOTP(ctx context.Context, sessionID string) error {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return apperror.NewUnauthorized("session expired or invalid")
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("resolving session user: %w", err))
	}

	return m.requestOTP(ctx, user)
}

// requestOTP resolves the user's WhatsApp phone, generates a code, persists
// it, and hands it to the out-of-band sender. The code value never appears
// in the return path or the logs.
func (m *Manager) requestOTP(ctx context.Context, user *User) error {
	phone := ""
	if user.WhatsappPhone != nil {
		phone = NormalizePhone(*user.WhatsappPhone)
	}

	if phone == "" {
		// Self-healing: the phone may have been captured at signup but
		// never copied to the profile. Recover and persist it back.
		signupPhone, err := m.users.SignupPhone(ctx, user.ID)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("reading signup metadata: %w", err))
		}
		phone = NormalizePhone(signupPhone)
		if phone != "" {
			if err := m.users.UpdateWhatsappPhone(ctx, user.ID, phone); err != nil {
				slog.Warn("failed to persist recovered whatsapp phone",
					slog.String("user_id", user.ID),
					slog.Any("error", err),
				)
			}
		}
	}

	if phone == "" {
		// Terminal until an admin fixes the profile; retrying won't help,
		// so the message says exactly what is missing.
		return apperror.NewValidation("no WhatsApp phone configured for this account; contact an administrator")
	}

	code, err := otp.NewCode(user.Email, phone, user.ID)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("generating otp: %w", err))
	}

	if err := m.codes.Create(ctx, code); err != nil {
		return apperror.NewInternal(fmt.Errorf("persisting otp: %w", err))
	}

	if err := m.sender.Send(ctx, code.WhatsappPhone, code.Code); err != nil {
		return apperror.NewInternal(fmt.Errorf("dispatching otp: %w", err))
	}

	m.seclog.OTPRequested(ctx, user.ID, user.Email)
	otpIssued.Inc()

	return nil
}

// VerifyOTP checks the submitted code and, on success, promotes the session
// to fully verified. Wrong, expired, and already-consumed codes all produce
// the same error — callers cannot enumerate which failure occurred.
func (m *Manager) VerifyOTP(ctx context.Context, sessionID, code string) (string, error) {
	if code == "" {
		return "", apperror.NewBadRequest("code is required")
	}

	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return "", apperror.NewUnauthorized("session expired or invalid")
	}

	ok, err := m.codes.Consume(ctx, session.Email, code)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("verifying otp: %w", err))
	}
	if !ok {
		otpVerifyFailures.Inc()
		return "", apperror.NewUnauthorized("invalid or expired code")
	}

	now := m.now().UTC()
	session.OTPVerified = true
	if err := m.store.Save(ctx, session); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("promoting session: %w", err))
	}
	if err := m.store.TouchActivity(ctx, session.ID, now); err != nil {
		slog.Warn("failed to stamp activity on otp verify",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}

	m.seclog.OTPVerified(ctx, session.UserID, session.Email)
	otpVerified.Inc()

	// Re-issue the access token so its otp claim reflects the promotion.
	accessToken, err := m.tokens.Issue(session, now)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	return accessToken, nil
}

// Refresh rotates a session's tokens. Any failure past the lookup is fatal
// to the session: a session that cannot refresh must not linger in a
// half-working state, so it is destroyed and the client must log in again.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	session, err := m.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}

	now := m.now().UTC()
	oldRefresh := session.RefreshToken

	newRefresh, err := newRefreshToken()
	if err != nil {
		m.expireSession(ctx, session, reasonRefreshFailed)
		return nil, apperror.NewInternal(fmt.Errorf("rotating refresh token: %w", err))
	}

	session.RefreshToken = newRefresh
	session.AccessExpiresAt = now.Add(m.tokens.AccessTTL())

	if err := m.store.Save(ctx, session); err != nil {
		m.expireSession(ctx, session, reasonRefreshFailed)
		return nil, apperror.NewInternal(fmt.Errorf("saving refreshed session: %w", err))
	}
	if err := m.store.DeleteRefreshIndex(ctx, oldRefresh); err != nil {
		slog.Warn("failed to drop rotated refresh token",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}

	accessToken, err := m.tokens.Issue(session, now)
	if err != nil {
		m.expireSession(ctx, session, reasonRefreshFailed)
		return nil, apperror.NewInternal(err)
	}

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.AccessExpiresAt,
	}, nil
}

// SignOut destroys a session. Idempotent: signing out a session that is
// already gone succeeds silently, so concurrent expiry paths can both call
// it.
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	session, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("loading session for sign-out: %w", err))
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return apperror.NewInternal(fmt.Errorf("destroying session: %w", err))
	}

	m.seclog.Logout(ctx, session.UserID, session.Email)
	return nil
}

// Validate parses an access token and loads its backing session. It does
// not check OTP state — RequireAuth layers that on, because a pre-OTP
// session still needs to reach the verify endpoint.
func (m *Manager) Validate(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := m.tokens.Parse(accessToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}

	session, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if session.UserID != claims.Subject {
		return nil, apperror.NewUnauthorized("session mismatch")
	}
	return session, nil
}

// RecordActivity stamps the inactivity clock for a session. Only verified
// sessions accumulate activity; pre-OTP requests never move the clock.
func (m *Manager) RecordActivity(ctx context.Context, session *Session) {
	if !session.OTPVerified {
		return
	}
	if err := m.store.TouchActivity(ctx, session.ID, m.now().UTC()); err != nil {
		slog.Warn("failed to record activity",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}
}

// expireSession destroys a session for the given reason and records the
// event. Both watchdogs and the refresh path funnel through here; the
// underlying delete is idempotent so double expiry is harmless.
func (m *Manager) expireSession(ctx context.Context, session *Session, reason string) {
	if err := m.store.Delete(ctx, session.ID); err != nil {
		slog.Error("failed to destroy expired session",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
		return
	}

	m.seclog.SessionExpired(ctx, session.UserID, session.Email, reason)
	sessionsExpired.WithLabelValues(reason).Inc()

	slog.Info("session expired",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
		slog.String("reason", reason),
	)
}
