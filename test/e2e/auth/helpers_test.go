package auth_test

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/app"
	"github.com/aussiebroadwan/accounts/internal/auth/provider/google"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common helpers for auth service end-to-end tests. Every test runs the
 * whole application in process against one shared Redis container, with
 * a capturing mailer and a fake Google standing in for the outside world.
 */

const (
	jwtSecret   = "e2e-secret-0123456789abcdefghijklmnop"
	redirectURI = "http://localhost:3000/auth/callback"

	googleSubject = "e2e-google-sub"
	googleEmail   = "grace@example.com"
)

var (
	// redisURL is empty when no container could be started.
	redisURL string

	// sharedDir holds the pepper file every application instance loads.
	sharedDir string
)

// TestMain starts Redis once for every test and removes it afterwards.
func TestMain(m *testing.M) {
	flag.Parse()

	dir, err := os.MkdirTemp("", "accounts-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	sharedDir = dir

	var container testcontainers.Container
	if !testing.Short() {
		fmt.Fprintf(os.Stdout, "Starting Redis container...")
		container, redisURL, err = startRedis(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stdout, " unavailable: %v\n", err)
		} else {
			fmt.Fprintf(os.Stdout, " done\n")
		}
	}

	exitCode := m.Run()

	if container != nil {
		fmt.Fprintf(os.Stdout, "Stopping Redis container...")
		_ = container.Terminate(context.Background())
		fmt.Fprintf(os.Stdout, " done\n")
	}
	_ = os.RemoveAll(sharedDir)

	os.Exit(exitCode)
}

func startRedis(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), nil
}

// mailbox captures sign-in codes instead of sending them.
type mailbox struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (m *mailbox) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = make(map[string][]string)
	}
	m.sent[to] = append(m.sent[to], body)
	return nil
}

var codePattern = regexp.MustCompile(`code is: (\d+)`)

// lastCode returns the most recent code mailed to the address.
func (m *mailbox) lastCode(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	bodies := m.sent[to]
	require.NotEmpty(t, bodies, "no mail sent to %s", to)
	match := codePattern.FindStringSubmatch(bodies[len(bodies)-1])
	require.Len(t, match, 2)
	return match[1]
}

func (m *mailbox) count(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent[to])
}

// fakeGoogle serves the token and userinfo endpoints. The only accepted
// authorization code is "good-code".
type fakeGoogle struct {
	mu       sync.Mutex
	verifier string
}

func (f *fakeGoogle) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		f.mu.Lock()
		f.verifier = r.PostForm.Get("code_verifier")
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.e2e",
			"token_type":   "Bearer",
			"expires_in":   3599,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.e2e" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            googleSubject,
			"email":          googleEmail,
			"email_verified": true,
			"name":           "Grace Hopper",
		})
	})
	return mux
}

func (f *fakeGoogle) lastVerifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifier
}

// testService is one running application.
type testService struct {
	client *authsdk.SDKClient
	mail   *mailbox
	google *fakeGoogle
}

// setupAuthService starts the application against the shared Redis and
// returns a client for it.
func setupAuthService(t *testing.T) (*testService, func()) {
	t.Helper()
	if redisURL == "" {
		t.Skip("redis container unavailable")
	}

	fake := &fakeGoogle{}
	googleSrv := httptest.NewServer(fake.handler())

	provider, err := google.New(google.Config{
		ClientID:     "e2e-client",
		ClientSecret: "e2e-secret",
		RedirectURI:  redirectURI,
		AuthURL:      "https://accounts.example.com/o/oauth2/v2/auth",
		TokenURL:     googleSrv.URL + "/token",
		UserInfoURL:  googleSrv.URL + "/userinfo",
		HTTPClient:   googleSrv.Client(),
	})
	require.NoError(t, err)

	cfg := app.LoadConfig()
	cfg.JWTAlgorithm = app.AlgorithmHS256
	cfg.JWTSecret = jwtSecret
	cfg.StoreDriver = app.StoreDriverRedis
	cfg.RedisURL = redisURL
	cfg.OtpPepperFile = filepath.Join(sharedDir, "pepper")
	cfg.UserDatabaseFile = filepath.Join(t.TempDir(), "accounts.db")
	cfg.GoogleRedirectURI = redirectURI
	cfg.Env = "test"

	mail := &mailbox{}
	application, err := app.New(cfg,
		app.WithMailer(mail),
		app.WithIdentityProvider(provider),
		app.WithLogOutput(io.Discard),
	)
	require.NoError(t, err)
	application.StartHousekeeping()

	srv := httptest.NewServer(application.Handler())

	cleanup := func() {
		srv.Close()
		googleSrv.Close()
		if err := application.Close(); err != nil {
			t.Logf("failed to close application: %v", err)
		}
	}

	return &testService{
		client: authsdk.NewSDKClient(srv.URL),
		mail:   mail,
		google: fake,
	}, cleanup
}

// uniqueEmail keeps tests apart in the shared Redis.
func uniqueEmail(t *testing.T, local string) string {
	t.Helper()
	return fmt.Sprintf("%s+%d@example.com", local, time.Now().UnixNano())
}

// loginWithOtp runs the full email code flow.
func loginWithOtp(t *testing.T, svc *testService, email string) (*authsdk.Session, *authsdk.VerifyOtpResponse) {
	t.Helper()

	req, err := svc.client.RequestOtp(t.Context(), email)
	require.NoError(t, err)
	require.True(t, req.Accepted)

	session, resp, err := svc.client.VerifyOtp(t.Context(), email, svc.mail.lastCode(t, email))
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NotNil(t, session)
	return session, resp
}

// wrongCode differs from code in every digit.
func wrongCode(code string) string {
	b := []byte(code)
	for i := range b {
		b[i] = '0' + (b[i]-'0'+1)%10
	}
	return string(b)
}

func assertTokenPair(t *testing.T, pair *authsdk.TokenPairResponse) {
	t.Helper()
	require.NotNil(t, pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Positive(t, pair.ExpiresIn)
	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
	require.NotEmpty(t, health.Version)
	require.NotEmpty(t, health.Uptime)
}
