package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creditgate/creditgate/internal/cache"
	"github.com/creditgate/creditgate/internal/config"
	"github.com/creditgate/creditgate/internal/handler"
	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/model"
	"github.com/creditgate/creditgate/internal/repository"
	"github.com/creditgate/creditgate/internal/service"
	"github.com/creditgate/creditgate/internal/testutil"
	"github.com/creditgate/creditgate/internal/throttle"
)

type testApp struct {
	router   http.Handler
	users    *repository.UserRepository
	recorder *metrics.InMemoryRecorder
}

func newTestApp(t *testing.T, environ map[string]string) *testApp {
	t.Helper()

	cfg, err := config.LoadFrom(environ)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	users := repository.NewUserRepository()
	recorder := metrics.NewInMemory()
	accounts := service.NewAccountService(users, service.AccountConfig{
		InitialCredits:  cfg.InitialCredits,
		DefaultRecharge: cfg.DefaultRecharge,
	}, recorder)
	items := service.NewItemService(repository.NewItemRepository(model.DefaultItems()...), recorder)

	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   testutil.DiscardLogger(),
		Users:    users,
		Accounts: accounts,
		Items:    items,
		Limiter:  throttle.NewMemory(cfg.ThrottleMaxAttempts, cfg.ThrottleWindow),
		Recorder: recorder,
	})

	return &testApp{router: router, users: users, recorder: recorder}
}

type call struct {
	method string
	path   string
	ip     string
	token  string
	body   string
}

func (a *testApp) do(c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.ip == "" {
		c.ip = "192.0.2.100"
	}
	req.RemoteAddr = c.ip + ":34567"
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, ip string) string {
	t.Helper()

	rec := a.do(call{method: http.MethodPost, path: "/register", ip: ip})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register from %s: status = %d, body = %s", ip, rec.Code, rec.Body.String())
	}
	return decode(t, rec)["token"].(string)
}

func (a *testApp) balance(t *testing.T, token string) int {
	t.Helper()

	n, err := a.users.Balance(context.Background(), token)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	return n
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRouter_Ping(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)

	rec := app.do(call{method: http.MethodGet, path: "/ping"})

	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "pong" {
		t.Errorf("GET /ping = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)

	if rec := app.do(call{method: http.MethodGet, path: "/nope"}); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", rec.Code)
	}
	if rec := app.do(call{method: http.MethodGet, path: "/register"}); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /register = %d, want 405", rec.Code)
	}
}

func TestRouter_RegistrationPerIP(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, map[string]string{"INITIAL_CREDITS": "1"})

	first := app.register(t, "198.51.100.1")

	rec := app.do(call{method: http.MethodPost, path: "/register", ip: "198.51.100.1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("second register = %d, want 403", rec.Code)
	}
	if decode(t, rec)["code"] != handler.CodeAlreadyRegistered {
		t.Errorf("body = %s", rec.Body.String())
	}

	if rec := app.do(call{method: http.MethodGet, path: "/items", token: first}); rec.Code != http.StatusOK {
		t.Fatalf("spending the only credit = %d", rec.Code)
	}

	second := app.register(t, "198.51.100.1")
	if second == first {
		t.Fatal("new registration reused the exhausted token")
	}
	if got, _ := app.users.TokenForIP(context.Background(), "198.51.100.1"); got != second {
		t.Errorf("IP maps to %q, want the new token", got)
	}
	if app.balance(t, first) != 0 {
		t.Error("old token balance changed")
	}
}

func TestRouter_ForwardedClientIP(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, map[string]string{"TRUST_PROXY": "true"})

	for _, ip := range []string{"203.0.113.5", "203.0.113.6"} {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		app.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("register for %s = %d", ip, rec.Code)
		}
		if _, ok := app.users.TokenForIP(context.Background(), ip); !ok {
			t.Errorf("no registration recorded for forwarded IP %s", ip)
		}
	}
}

func TestRouter_ForwardedHeadersIgnoredByDefault(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)

	for i := 1; i <= 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.RemoteAddr = "192.0.2.50:4444"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.9.8.%d", i))
		rec := httptest.NewRecorder()
		app.router.ServeHTTP(rec, req)

		want := http.StatusForbidden
		switch i {
		case 1:
			want = http.StatusCreated
		case 6:
			want = http.StatusTooManyRequests
		}
		if rec.Code != want {
			t.Fatalf("attempt %d with forged forwarding headers = %d, want %d", i, rec.Code, want)
		}
	}

	if n := app.users.Count(); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
	if _, ok := app.users.TokenForIP(context.Background(), "192.0.2.50"); !ok {
		t.Error("registration not bound to the peer address")
	}
	if _, ok := app.users.TokenForIP(context.Background(), "10.9.9.1"); ok {
		t.Error("registration bound to a forwarded address")
	}
}

func TestRouter_OneCreditPerGatedSuccess(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)
	token := app.register(t, "198.51.100.2")

	rec := app.do(call{method: http.MethodGet, path: "/items", token: token})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /items = %d", rec.Code)
	}
	body := decode(t, rec)
	if items, _ := body["items"].([]any); len(items) != 2 {
		t.Errorf("items = %v, want the two seed items", body["items"])
	}
	if body["requestsNumberRemaining"] != float64(9) {
		t.Errorf("requestsNumberRemaining = %v, want 9", body["requestsNumberRemaining"])
	}

	rec = app.do(call{method: http.MethodPost, path: "/items", token: token, body: `{"name":"Item 3","description":"d"}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /items = %d", rec.Code)
	}
	body = decode(t, rec)
	if body["id"] != float64(3) || body["requestsNumberRemaining"] != float64(8) {
		t.Errorf("POST body = %v", body)
	}

	// Failures and non-gated routes are free.
	free := []call{
		{method: http.MethodPost, path: "/items", token: token, body: `{"name":`},
		{method: http.MethodPut, path: "/items/42", token: token, body: `{"name":"x"}`},
		{method: http.MethodPut, path: "/items/1", token: token, body: `{}`},
		{method: http.MethodPut, path: "/items/1", token: token, body: `{"name":"renamed"}`},
		{method: http.MethodDelete, path: "/items/42", token: token},
		{method: http.MethodDelete, path: "/items/abc", token: token},
		{method: http.MethodGet, path: "/ping", token: token},
	}
	for _, c := range free {
		app.do(c)
	}

	if got := app.balance(t, token); got != 8 {
		t.Errorf("balance = %d, want 8", got)
	}
	if spent := app.recorder.Snapshot().CreditsSpent; spent != 2 {
		t.Errorf("CreditsSpent = %d, want 2", spent)
	}
}

func TestRouter_ItemsRequireToken(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)

	for _, c := range []call{
		{method: http.MethodGet, path: "/items"},
		{method: http.MethodPost, path: "/items", body: `{}`},
		{method: http.MethodPut, path: "/items/1", body: `{"name":"x"}`},
		{method: http.MethodDelete, path: "/items/1"},
		{method: http.MethodGet, path: "/items", token: "forged"},
		{method: http.MethodPost, path: "/recharge", token: "forged"},
	} {
		rec := app.do(c)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", c.method, c.path, rec.Code)
		}
	}
}

func TestRouter_ExhaustionAndRecharge(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, map[string]string{"INITIAL_CREDITS": "2"})
	token := app.register(t, "198.51.100.3")

	for i := 0; i < 2; i++ {
		if rec := app.do(call{method: http.MethodGet, path: "/items", token: token}); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}

	rec := app.do(call{method: http.MethodGet, path: "/items", token: token})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted GET = %d, want 429", rec.Code)
	}
	body := decode(t, rec)
	if body["code"] != "TOO_MANY_REQUESTS" || body["requestsNumber"] != float64(0) {
		t.Errorf("exhausted body = %v", body)
	}
	if got := app.balance(t, token); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}

	rec = app.do(call{method: http.MethodPost, path: "/recharge", token: token, ip: "198.51.100.3", body: `{"amount":-5}`})
	if rec.Code != http.StatusOK {
		t.Fatalf("recharge = %d", rec.Code)
	}
	body = decode(t, rec)
	if body["newRequestsNumber"] != float64(10) || body["message"] != "Recharged with 10 requests." {
		t.Errorf("recharge body = %v", body)
	}

	if rec := app.do(call{method: http.MethodGet, path: "/items", token: token}); rec.Code != http.StatusOK {
		t.Errorf("GET after recharge = %d", rec.Code)
	}
}

func TestRouter_NegativeRechargeMatchesDefault(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)

	negative := app.register(t, "198.51.100.4")
	defaulted := app.register(t, "198.51.100.5")

	app.do(call{method: http.MethodPost, path: "/recharge", token: negative, ip: "198.51.100.4", body: `{"amount":-5}`})
	app.do(call{method: http.MethodPost, path: "/recharge", token: defaulted, ip: "198.51.100.5"})

	if a, b := app.balance(t, negative), app.balance(t, defaulted); a != b || a != 20 {
		t.Errorf("balances = %d and %d, want 20 and 20", a, b)
	}
}

func TestRouter_ThrottleSixthAttempt(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)
	ip := "198.51.100.6"

	token := app.register(t, ip)
	for i := 2; i <= 5; i++ {
		if rec := app.do(call{method: http.MethodPost, path: "/register", ip: ip}); rec.Code != http.StatusForbidden {
			t.Fatalf("attempt %d = %d, want 403", i, rec.Code)
		}
	}

	rec := app.do(call{method: http.MethodPost, path: "/register", ip: ip})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt = %d, want 429", rec.Code)
	}
	body := decode(t, rec)
	if body["code"] != "TOO_MANY_ATTEMPTS" || body["message"] != "Please register again to get a new token" {
		t.Errorf("sixth attempt body = %v", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}

	// A funded token skips the throttle on both throttled routes.
	if rec := app.do(call{method: http.MethodPost, path: "/register", ip: ip, token: token}); rec.Code != http.StatusForbidden {
		t.Errorf("funded register = %d, want 403 from the identity store", rec.Code)
	}
	if rec := app.do(call{method: http.MethodPost, path: "/recharge", ip: ip, token: token, body: `{"amount":1}`}); rec.Code != http.StatusOK {
		t.Errorf("funded recharge = %d, want 200", rec.Code)
	}

	// Without the token the IP is still blocked.
	if rec := app.do(call{method: http.MethodPost, path: "/register", ip: ip}); rec.Code != http.StatusTooManyRequests {
		t.Errorf("anonymous attempt = %d, want 429", rec.Code)
	}
}

func TestRouter_ThrottleDisabled(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, map[string]string{"THROTTLE_ENABLED": "false"})

	app.register(t, "198.51.100.7")
	for i := 0; i < 10; i++ {
		if rec := app.do(call{method: http.MethodPost, path: "/register", ip: "198.51.100.7"}); rec.Code != http.StatusForbidden {
			t.Fatalf("attempt %d = %d, want 403", i, rec.Code)
		}
	}
}

func TestRouter_ConcurrentLastCredit(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, map[string]string{"INITIAL_CREDITS": "1"})
	token := app.register(t, "198.51.100.8")

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = app.do(call{method: http.MethodGet, path: "/items", token: token}).Code
		}(i)
	}
	wg.Wait()

	ok, limited := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		}
	}
	if ok != 1 || limited != 1 {
		t.Errorf("codes = %v, want one 200 and one 429", codes)
	}
	if got := app.balance(t, token); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

func TestRouter_DuplicateIDAfterDelete(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)
	token := app.register(t, "198.51.100.9")

	rec := app.do(call{method: http.MethodDelete, path: "/items/1", token: token})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Item deleted successfully." {
		t.Fatalf("DELETE /items/1 = %d %s", rec.Code, rec.Body.String())
	}

	rec = app.do(call{method: http.MethodPost, path: "/items", token: token, body: `{"name":"dup"}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /items = %d", rec.Code)
	}
	if id := decode(t, rec)["id"]; id != float64(2) {
		t.Fatalf("new id = %v, want 2", id)
	}

	rec = app.do(call{method: http.MethodGet, path: "/items", token: token})
	items := decode(t, rec)["items"].([]any)
	twos := 0
	for _, it := range items {
		if it.(map[string]any)["id"] == float64(2) {
			twos++
		}
	}
	if twos != 2 {
		t.Errorf("items with id 2 = %d, want 2", twos)
	}
}

func TestRouter_RequestBodyLimit(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, map[string]string{"MAX_REQUEST_BODY_SIZE": "64"})
	token := app.register(t, "198.51.100.10")

	big := fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 200))
	rec := app.do(call{method: http.MethodPost, path: "/items", token: token, body: big})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized POST = %d, want 413", rec.Code)
	}
	if got := app.balance(t, token); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFrom(nil)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(reg)
	users := repository.NewUserRepository()

	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   testutil.DiscardLogger(),
		Users:    users,
		Accounts: service.NewAccountService(users, service.AccountConfig{}, recorder),
		Items:    service.NewItemService(repository.NewItemRepository(), recorder),
		Limiter:  throttle.NewMemory(cfg.ThrottleMaxAttempts, cfg.ThrottleWindow),
		Recorder: recorder,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	req.RemoteAddr = "192.0.2.50:1000"
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	for _, want := range []string{
		`creditgate_registrations_total{outcome="created"} 1`,
		`creditgate_throttle_decisions_total{outcome="allowed"} 1`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRouter_RedisThrottleBackend(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)

	cfg, err := config.LoadFrom(map[string]string{
		"THROTTLE_BACKEND":      "redis",
		"REDIS_URL":             "redis://" + mr.Addr(),
		"THROTTLE_MAX_ATTEMPTS": "2",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	redisCache := cache.NewWithClient(client)
	users := repository.NewUserRepository()
	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   testutil.DiscardLogger(),
		Users:    users,
		Accounts: service.NewAccountService(users, service.AccountConfig{}, nil),
		Items:    service.NewItemService(repository.NewItemRepository(), nil),
		Limiter:  cache.NewAttemptLimiter(redisCache, cfg.ThrottleMaxAttempts, cfg.ThrottleWindow),
		Checks:   map[string]handler.HealthChecker{"redis": redisCache},
	})

	attempt := func() int {
		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(nil))
		req.RemoteAddr = "192.0.2.60:1000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := attempt(); code != http.StatusCreated {
		t.Fatalf("first attempt = %d", code)
	}
	if code := attempt(); code != http.StatusForbidden {
		t.Fatalf("second attempt = %d", code)
	}
	if code := attempt(); code != http.StatusTooManyRequests {
		t.Fatalf("third attempt = %d, want 429", code)
	}

	mr.FastForward(cfg.ThrottleWindow)
	if code := attempt(); code != http.StatusForbidden {
		t.Errorf("attempt after window = %d, want 403", code)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", rec.Code)
	}

	mr.SetError("LOADING Redis is loading the dataset in memory")
	if code := attempt(); code != http.StatusForbidden {
		t.Errorf("attempt with Redis down = %d, want 403 (fail open)", code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz with Redis down = %d, want 503", rec.Code)
	}
}
