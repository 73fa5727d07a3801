package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// testRateLimiterConfig はテスト用の小さなレート制限設定を返す。
func testRateLimiterConfig(generalBurst, createBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 補充をほぼ無効化
		GeneralBurst:    generalBurst,
		CreateRate:      rate.Limit(0.001),
		CreateBurst:     createBurst,
		CleanupInterval: time.Hour,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestGeneralMiddleware_AllowsWithinLimit はバースト以内のリクエストが通過することを検証する。
func TestGeneralMiddleware_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(3, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
		req.RemoteAddr = "203.0.113.1:54321"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

// TestGeneralMiddleware_RejectsOverLimit はバースト超過のリクエストが429で拒否されることを検証する。
func TestGeneralMiddleware_RejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	var lastCode int
	var lastBody []byte
	var lastHeader http.Header
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
		req.RemoteAddr = "203.0.113.1:54321"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		lastCode = w.Code
		lastBody = w.Body.Bytes()
		lastHeader = w.Header()
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", lastCode, http.StatusTooManyRequests)
	}
	if lastHeader.Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	var body map[string]string
	if err := json.Unmarshal(lastBody, &body); err != nil {
		t.Fatalf("failed to decode 429 body: %v", err)
	}
	if body["code"] != "rate_limit_exceeded" {
		t.Errorf("code = %q, want rate_limit_exceeded", body["code"])
	}
}

// TestGeneralMiddleware_IndependentClients は異なるクライアントIPが
// 独立したリミッターを持つことを検証する。
func TestGeneralMiddleware_IndependentClients(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// 1人目がバーストを使い切る
	req1 := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
	req1.RemoteAddr = "203.0.113.1:1000"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)
	if w1.Code != http.StatusOK {
		t.Fatalf("first client: status = %d, want 200", w1.Code)
	}

	// 2人目は影響を受けない
	req2 := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
	req2.RemoteAddr = "203.0.113.2:1000"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Errorf("second client: status = %d, want 200", w2.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

// TestCreateMiddleware_IndependentOfGeneral は地点登録のレート制限が
// API全般のレート制限と独立に動作することを検証する。
func TestCreateMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(10, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	create := rl.CreateMiddleware()(okHandler())

	// 登録リミッターを使い切る
	req := httptest.NewRequest(http.MethodPost, "/api/locations", nil)
	req.RemoteAddr = "203.0.113.1:1000"
	w := httptest.NewRecorder()
	create.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first create: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	create.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second create: status = %d, want 429", w.Code)
	}

	// API全般は引き続き通過する
	w = httptest.NewRecorder()
	general.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/locations", nil))
	if w.Code != http.StatusOK {
		t.Errorf("general after create exhausted: status = %d, want 200", w.Code)
	}
}

// TestClientKey_StripsPort はレート制限キーがポート番号を含まないことを検証する。
func TestClientKey_StripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:54321"

	if got := clientKey(req); got != "203.0.113.1" {
		t.Errorf("clientKey = %q, want 203.0.113.1", got)
	}
}

// TestClientKey_FallbackWithoutPort はポートなしアドレスがそのまま使われることを検証する。
func TestClientKey_FallbackWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9"

	if got := clientKey(req); got != "203.0.113.9" {
		t.Errorf("clientKey = %q, want 203.0.113.9", got)
	}
}

// TestCleanup_RemovesStaleEntries は期限切れエントリがクリーンアップされることを検証する。
func TestCleanup_RemovesStaleEntries(t *testing.T) {
	cfg := testRateLimiterConfig(1, 1)
	cfg.CleanupInterval = time.Nanosecond
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter("203.0.113.1")
	rl.getOrCreateCreateLimiter("203.0.113.1")

	// lastAccessをTTLより過去に巻き戻す
	rl.generalMu.Lock()
	rl.generalLimiters["203.0.113.1"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()
	rl.createMu.Lock()
	rl.createLimiters["203.0.113.1"].lastAccess = time.Now().Add(-time.Hour)
	rl.createMu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount = %d, want 0", rl.GeneralLimiterCount())
	}
	if rl.CreateLimiterCount() != 0 {
		t.Errorf("CreateLimiterCount = %d, want 0", rl.CreateLimiterCount())
	}
}

// TestDefaultRateLimiterConfig は既定値が要件どおりであることを検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.CreateBurst != 10 {
		t.Errorf("CreateBurst = %d, want 10", cfg.CreateBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}
