package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"phoneotp/internal/config"
)

// fakeBackend stands in for both the Solapi API and the Supabase project.
type fakeBackend struct {
	mu    sync.Mutex
	texts []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/messages/v4/send":
		if !strings.HasPrefix(r.Header.Get("Authorization"), "HMAC-SHA256 apiKey=key,") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Message struct{ To, Text string }
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		b.mu.Lock()
		b.texts = append(b.texts, body.Message.Text)
		b.mu.Unlock()
		io.WriteString(w, `{"groupId":"G1","messageId":"M1","to":"`+body.Message.To+`","statusCode":"2000"}`)
	case r.URL.Path == "/rest/v1/profiles":
		if r.URL.Query().Get("phone") == "eq.01012345678" {
			io.WriteString(w, `[{"id":"acct-1"}]`)
			return
		}
		io.WriteString(w, `[]`)
	case r.URL.Path == "/auth/v1/admin/users/acct-1":
		io.WriteString(w, `{"id":"acct-1","email":"student@studysnap.kr"}`)
	default:
		http.NotFound(w, r)
	}
}

func testConfig(t *testing.T, backendURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Database.Driver = config.DriverBolt
	cfg.Database.BoltPath = filepath.Join(t.TempDir(), "data", "otp.db")
	cfg.Solapi = config.SolapiConfig{APIKey: "key", APISecret: "secret", From: "010-1111-2222", BaseURL: backendURL}
	cfg.Supabase = config.SupabaseConfig{URL: backendURL, ServiceRoleKey: "service"}
	cfg.OTP.AllowSandbox = true
	cfg.ApplyDefaults()
	return cfg
}

func call(t *testing.T, h http.Handler, path, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s: status %d", path, w.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return out
}

func TestEndToEndSandbox(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	router, cleanup, err := Build(testConfig(t, srv.URL), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	sent := call(t, router, "/otp-send", `{"phone":"010-1234-5678","sandbox":true}`)
	if sent["ok"] != true || sent["sandbox"] != true {
		t.Fatalf("send = %v", sent)
	}
	code := sent["code"].(string)

	again := call(t, router, "/otp-send", `{"phone":"01012345678"}`)
	if again["reason"] != "TOO_FREQUENT" || again["retry_after"] != float64(30) {
		t.Fatalf("second send = %v", again)
	}

	found := call(t, router, "/find-email-by-phone", `{"phone":"01012345678","code":"`+code+`"}`)
	if found["ok"] != true || found["emailMasked"] != "st***@studysnap.kr" {
		t.Fatalf("find = %v", found)
	}

	replay := call(t, router, "/otp-verify", `{"phone":"01012345678","code":"`+code+`"}`)
	if replay["reason"] != "NOT_FOUND" {
		t.Fatalf("replay = %v", replay)
	}
	if len(backend.texts) != 0 {
		t.Fatalf("sandbox reached the provider: %v", backend.texts)
	}
}

func TestEndToEndDelivery(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	router, cleanup, err := Build(testConfig(t, srv.URL), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	sent := call(t, router, "/otp-send", `{"phone":"01099998888"}`)
	if sent["ok"] != true {
		t.Fatalf("send = %v", sent)
	}
	if len(backend.texts) != 1 || !strings.HasPrefix(backend.texts[0], "[StudySnap] 인증번호 ") {
		t.Fatalf("texts = %v", backend.texts)
	}

	wrong := call(t, router, "/find-email-by-phone", `{"phone":"01099998888","code":"000000"}`)
	if wrong["ok"] != false || wrong["stage"] != "verify" {
		t.Fatalf("wrong code = %v", wrong)
	}

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("healthz = %d", health.Code)
	}
}

func TestBuildDegradedWithoutEnv(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Database.Driver = config.DriverBolt
	cfg.Database.BoltPath = filepath.Join(t.TempDir(), "otp.db")
	cfg.ApplyDefaults()

	router, cleanup, err := Build(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	send := call(t, router, "/otp-send", `{"phone":"01012345678"}`)
	if send["reason"] != "ENV_MISSING" || len(send["missing"].([]any)) != 3 {
		t.Fatalf("send = %v", send)
	}
	find := call(t, router, "/find-email-by-phone", `{"phone":"01012345678","code":"123456"}`)
	if find["reason"] != "SERVER_ERROR" || find["stage"] != "env" {
		t.Fatalf("find = %v", find)
	}
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "mysql"
	if _, cleanup, err := Build(cfg, zap.NewNop()); err == nil {
		t.Fatal("unknown driver accepted")
	} else {
		cleanup()
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(config.LogConfig{Level: "debug", Development: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("bad level accepted")
	}
}
