package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribuna-digital/portal/internal/apperror"
	"github.com/tribuna-digital/portal/internal/plugins/otp"
)

// --- Mocks ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	findByIDFn            func(ctx context.Context, id string) (*User, error)
	findByEmailFn         func(ctx context.Context, email string) (*User, error)
	updateLastLoginFn     func(ctx context.Context, id string) error
	signupPhoneFn         func(ctx context.Context, id string) (string, error)
	updateWhatsappPhoneFn func(ctx context.Context, id, phone string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) SignupPhone(ctx context.Context, id string) (string, error) {
	if m.signupPhoneFn != nil {
		return m.signupPhoneFn(ctx, id)
	}
	return "", nil
}

func (m *mockUserRepo) UpdateWhatsappPhone(ctx context.Context, id, phone string) error {
	if m.updateWhatsappPhoneFn != nil {
		return m.updateWhatsappPhoneFn(ctx, id, phone)
	}
	return nil
}

// mockCodeRepo implements otp.CodeRepository with an in-memory single
// active code per email, mirroring the SQL semantics. Expiry is stamped
// from the injected clock so tests can advance time.
type storedCode struct {
	code      string
	expiresAt time.Time
	consumed  bool
}

type mockCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*storedCode // by email, most recent only
	now   func() time.Time

	createFn func(ctx context.Context, code *otp.Code) error
}

func newMockCodeRepo(now func() time.Time) *mockCodeRepo {
	return &mockCodeRepo{codes: make(map[string]*storedCode), now: now}
}

func (m *mockCodeRepo) Create(ctx context.Context, code *otp.Code) error {
	if m.createFn != nil {
		return m.createFn(ctx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.Email] = &storedCode{
		code:      code.Code,
		expiresAt: m.now().Add(otp.TTL),
	}
	return nil
}

func (m *mockCodeRepo) Consume(ctx context.Context, email, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.codes[email]
	if !ok || stored.code != code || stored.consumed {
		return false, nil
	}
	if !m.now().Before(stored.expiresAt) {
		return false, nil
	}
	stored.consumed = true
	return true, nil
}

func (m *mockCodeRepo) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// mockSender records dispatches.
type mockSender struct {
	mu     sync.Mutex
	sent   []string // codes
	phones []string
	err    error
}

func (m *mockSender) Send(_ context.Context, phone, code string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, code)
	m.phones = append(m.phones, phone)
	return nil
}

func (m *mockSender) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

// recorderLog records security events for assertions.
type recorderLog struct {
	mu      sync.Mutex
	events  []string
	reasons []string
}

func (r *recorderLog) record(event, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.reasons = append(r.reasons, reason)
}

func (r *recorderLog) LoginFailed(_ context.Context, email string, cause error) {
	r.record("login_failed", "")
}
func (r *recorderLog) OTPRequested(_ context.Context, userID, email string) {
	r.record("otp_requested", "")
}
func (r *recorderLog) OTPVerified(_ context.Context, userID, email string) {
	r.record("otp_verified", "")
}
func (r *recorderLog) SessionExpired(_ context.Context, userID, email, reason string) {
	r.record("session_expired", reason)
}
func (r *recorderLog) Logout(_ context.Context, userID, email string) {
	r.record("logout", "")
}

func (r *recorderLog) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

// --- Test fixture ---

type fixture struct {
	manager *Manager
	users   *mockUserRepo
	codes   *mockCodeRepo
	sender  *mockSender
	seclog  *recorderLog
	store   *SessionStore
	clock   *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testPhone() *string {
	p := "+5511999990000"
	return &p
}

func testUser(t *testing.T) *User {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	return &User{
		ID:            "user-1",
		Email:         "redator@portal.com",
		FullName:      "Ana Redatora",
		PasswordHash:  hash,
		Role:          RoleRedator,
		WhatsappPhone: testPhone(),
		CreatedAt:     time.Now().UTC(),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	// A base time well in the future keeps issued JWTs valid under the
	// library's wall-clock expiry check while the fixture clock advances.
	clock := &fakeClock{t: time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC)}

	f := &fixture{
		users:  &mockUserRepo{},
		codes:  newMockCodeRepo(clock.Now),
		sender: &mockSender{},
		seclog: &recorderLog{},
		store:  NewSessionStore(rdb, 24*time.Hour),
		clock:  clock,
	}

	tokens := NewTokenIssuer("test-secret-key-0123456789abcdef", time.Hour)
	f.manager = NewManager(f.users, f.codes, f.sender, f.store, tokens, f.seclog)
	f.manager.now = clock.Now

	return f
}

// signIn is a helper performing a successful first factor for a fixture
// whose user repo already resolves the test user.
func (f *fixture) signIn(t *testing.T) *LoginResult {
	t.Helper()
	result, err := f.manager.SignIn(context.Background(), "redator@portal.com", "correct horse")
	require.NoError(t, err)
	return result
}

func withUser(f *fixture, user *User) {
	f.users.findByEmailFn = func(_ context.Context, email string) (*User, error) {
		if email == user.Email {
			return user, nil
		}
		return nil, apperror.NewNotFound("user not found")
	}
	f.users.findByIDFn = func(_ context.Context, id string) (*User, error) {
		if id == user.ID {
			return user, nil
		}
		return nil, apperror.NewNotFound("user not found")
	}
}

// --- Sign-in ---

func TestSignInWrongPassword(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))

	_, err := f.manager.SignIn(context.Background(), "redator@portal.com", "wrong")

	require.Error(t, err)
	assert.Equal(t, 401, apperror.SafeCode(err))
	assert.True(t, f.seclog.has("login_failed"))
	assert.Empty(t, f.sender.sent, "no otp may be dispatched on failed login")
}

func TestSignInUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.SignIn(context.Background(), "nobody@portal.com", "x")

	require.Error(t, err)
	// Same generic message as wrong password: no account enumeration.
	assert.Equal(t, "invalid email or password", apperror.SafeMessage(err))
	assert.True(t, f.seclog.has("login_failed"))
}

func TestSignInDispatchesOTP(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))

	result := f.signIn(t)

	assert.True(t, result.RequiresOTP)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	require.Len(t, f.sender.sent, 1)
	assert.Len(t, f.sender.lastCode(), 6)
	assert.True(t, f.seclog.has("otp_requested"))

	// The session exists but is not yet verified.
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	assert.False(t, session.OTPVerified)
}

func TestSignInCodeNeverInResult(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))

	result := f.signIn(t)

	code := f.sender.lastCode()
	assert.NotContains(t, result.AccessToken, code)
	assert.NotContains(t, result.RefreshToken, code)
}

func TestSignInMissingPhoneIsTerminal(t *testing.T) {
	f := newFixture(t)
	user := testUser(t)
	user.WhatsappPhone = nil
	withUser(f, user)

	_, err := f.manager.SignIn(context.Background(), "redator@portal.com", "correct horse")

	require.Error(t, err)
	assert.Contains(t, apperror.SafeMessage(err), "WhatsApp")

	// The half-created session must have been rolled back: nothing to
	// validate, nothing verified.
	count := 0
	require.NoError(t, f.store.Each(context.Background(), func(*Session) { count++ }))
	assert.Zero(t, count, "no session may survive a failed otp dispatch")
}

func TestSignInRecoversPhoneFromSignupMetadata(t *testing.T) {
	f := newFixture(t)
	user := testUser(t)
	user.WhatsappPhone = nil
	withUser(f, user)

	persisted := ""
	f.users.signupPhoneFn = func(_ context.Context, id string) (string, error) {
		return "11 98888-7777", nil
	}
	f.users.updateWhatsappPhoneFn = func(_ context.Context, id, phone string) error {
		persisted = phone
		return nil
	}

	result := f.signIn(t)

	assert.True(t, result.RequiresOTP)
	assert.Equal(t, "+5511988887777", persisted, "recovered phone is normalized and written back")
	require.Len(t, f.sender.phones, 1)
	assert.Equal(t, "+5511988887777", f.sender.phones[0])
}

func TestSignInSenderFailureRollsBackSession(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	f.sender.err = errors.New("webhook down")

	_, err := f.manager.SignIn(context.Background(), "redator@portal.com", "correct horse")

	require.Error(t, err)
	count := 0
	require.NoError(t, f.store.Each(context.Background(), func(*Session) { count++ }))
	assert.Zero(t, count)
}

// --- OTP verification ---

func TestVerifyOTPPromotesSession(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)

	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)

	token, err := f.manager.VerifyOTP(context.Background(), session.ID, f.sender.lastCode())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	promoted, err := f.manager.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, promoted.OTPVerified)
	assert.True(t, f.seclog.has("otp_verified"))
}

func TestVerifyOTPSingleUse(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	code := f.sender.lastCode()

	_, err = f.manager.VerifyOTP(context.Background(), session.ID, code)
	require.NoError(t, err)

	_, err = f.manager.VerifyOTP(context.Background(), session.ID, code)
	require.Error(t, err, "a consumed code must not verify again")
	assert.Equal(t, "invalid or expired code", apperror.SafeMessage(err))
}

func TestVerifyOTPExpired(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	code := f.sender.lastCode()

	f.clock.Advance(otp.TTL + time.Second)

	_, err = f.manager.VerifyOTP(context.Background(), session.ID, code)
	require.Error(t, err)
	assert.Equal(t, "invalid or expired code", apperror.SafeMessage(err))
}

func TestVerifyOTPWrongCodeUniformError(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)

	_, wrongErr := f.manager.VerifyOTP(context.Background(), session.ID, "000000")
	f.clock.Advance(otp.TTL + time.Second)
	_, expiredErr := f.manager.VerifyOTP(context.Background(), session.ID, f.sender.lastCode())

	// Wrong and expired are indistinguishable to the caller.
	assert.Equal(t, apperror.SafeMessage(wrongErr), apperror.SafeMessage(expiredErr))
}

func TestResendInvalidatesPriorCode(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	first := f.sender.lastCode()

	require.NoError(t, f.manager.ResendOTP(context.Background(), session.ID))
	second := f.sender.lastCode()

	if first != second {
		_, err = f.manager.VerifyOTP(context.Background(), session.ID, first)
		require.Error(t, err, "only the most recent code verifies")
	}

	_, err = f.manager.VerifyOTP(context.Background(), session.ID, second)
	assert.NoError(t, err)
}

// --- Refresh and sign-out ---

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)

	refreshed, err := f.manager.Refresh(context.Background(), result.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, result.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, refreshed.AccessToken)

	// The old refresh token is dead after rotation.
	_, err = f.manager.Refresh(context.Background(), result.RefreshToken)
	assert.Error(t, err)
}

func TestRefreshDoesNotFlipOTPState(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)

	refreshed, err := f.manager.Refresh(context.Background(), result.RefreshToken)
	require.NoError(t, err)

	session, err := f.manager.Validate(context.Background(), refreshed.AccessToken)
	require.NoError(t, err)
	assert.False(t, session.OTPVerified, "refresh must not grant second-factor status")
}

func TestRefreshUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Refresh(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.Equal(t, 401, apperror.SafeCode(err))
}

func TestSignOutIdempotent(t *testing.T) {
	f := newFixture(t)
	withUser(f, testUser(t))
	result := f.signIn(t)
	session, err := f.manager.Validate(context.Background(), result.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.manager.SignOut(context.Background(), session.ID))
	// Second call is a no-op, not an error.
	require.NoError(t, f.manager.SignOut(context.Background(), session.ID))

	_, err = f.manager.Validate(context.Background(), result.AccessToken)
	assert.Error(t, err)
}
