package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/infrastructure/google"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
	redisinfra "github.com/storefront-api/internal/infrastructure/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memRepo) FindByEmailOrPhone(_ context.Context, email, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (email != "" && u.EmailValue() == email) || (phone != "" && u.PhoneValue() == phone) {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) Create(ctx context.Context, u *domain.User) error {
	if _, err := m.FindByEmailOrPhone(ctx, u.EmailValue(), u.PhoneValue()); err == nil {
		return domain.ErrDuplicateIdentity
	}
	return m.Save(ctx, u)
}

func (m *memRepo) Save(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = *u
	return nil
}

func (m *memRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *memRepo) List(_ context.Context, _ int32, _ string) ([]domain.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, "", nil
}

type testServer struct {
	srv  *httptest.Server
	mr   *miniredis.Miniredis
	repo *memRepo
	jwt  *jwtinfra.Provider
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		AppEnv:         config.EnvDevelopment,
		JWTSecret:      "router-test",
		JWTExpiry:      time.Hour,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		AllowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	jwt, err := jwtinfra.NewProvider(cfg)
	require.NoError(t, err)

	codes := redisinfra.NewCodeStore(client)
	repo := &memRepo{users: map[string]domain.User{}}
	engine := verification.NewEngine(verification.ServiceDeps{
		Codes: codes,
		Users: repo,
		Email: notification.NewEmailChain(zap.NewNop()),
		SMS:   notification.NewSMSChain(zap.NewNop(), notification.ClientDelegated{}),
		TTL:   time.Minute,
	})
	dir, err := google.NewPhoneDirectory(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(NewRouter(ctx, cfg, &Deps{
		UserRepo:       repo,
		CodeStore:      codes,
		Engine:         engine,
		JWTProvider:    jwt,
		PhoneDirectory: dir,
		GoogleVerifier: google.NewVerifier(""),
	}))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, mr: mr, repo: repo, jwt: jwt}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestPhoneFlowEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/auth/phone/send-code", "", map[string]string{"phoneNumber": "+15551234567"})
	require.Equal(t, http.StatusOK, status)
	vid, _ := body["verificationId"].(string)
	require.NotEmpty(t, vid)
	code := ts.mr.HGet(domain.VerificationKey(vid), "code")
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status, _ = ts.do(t, http.MethodPost, "/api/auth/phone/verify-code", "", map[string]string{
		"phoneNumber": "+15551234567", "verificationId": vid, "verificationCode": wrong,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = ts.do(t, http.MethodPost, "/api/auth/phone/verify-code", "", map[string]string{
		"phoneNumber": "+15551234567", "verificationId": vid, "verificationCode": code,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isPhoneVerified"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body = ts.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "+15551234567", body["phoneNumber"])

	status, _ = ts.do(t, http.MethodPost, "/api/auth/phone/check", "", map[string]string{"phoneNumber": "+15551234567"})
	assert.Equal(t, http.StatusOK, status)
}

func TestEmailSendWithoutProviderKeepsCode(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/auth/email/send-otp", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body["message"])

	code, err := ts.mr.Get("otp:a@b.com")
	require.NoError(t, err)

	status, body = ts.do(t, http.MethodPost, "/api/auth/email/verify-otp", "", map[string]string{"email": "a@b.com", "otp": code})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isVerified"])
}

func TestVerifyRoutesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 2
	})
	guess := map[string]string{"email": "a@b.com", "otp": "000000"}

	for i := 0; i < 2; i++ {
		status, _ := ts.do(t, http.MethodPost, "/api/auth/email/verify-otp", "", guess)
		assert.Equal(t, http.StatusBadRequest, status)
	}
	status, _ := ts.do(t, http.MethodPost, "/api/auth/email/verify-otp", "", guess)
	assert.Equal(t, http.StatusTooManyRequests, status)

	status, _ = ts.do(t, http.MethodPost, "/api/auth/phone/verify-code", "", map[string]string{
		"phoneNumber": "+15551234567", "verificationId": "vid-1", "verificationCode": "000000",
	})
	assert.Equal(t, http.StatusTooManyRequests, status)

	// send-code keeps its own budget
	status, _ = ts.do(t, http.MethodPost, "/api/auth/phone/send-code", "", map[string]string{"phoneNumber": "+15551234567"})
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	userTok, err := ts.jwt.Sign("u1", domain.RoleUser)
	require.NoError(t, err)
	status, _ = ts.do(t, http.MethodGet, "/api/users", userTok, nil)
	assert.Equal(t, http.StatusForbidden, status)

	adminTok, err := ts.jwt.Sign("admin1", domain.RoleAdmin)
	require.NoError(t, err)
	status, body := ts.do(t, http.MethodGet, "/api/users", adminTok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "users")
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["message"])

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
