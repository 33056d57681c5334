//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/infra/memory"
	"coinshop-coupons/internal/infra/payment"
	"coinshop-coupons/internal/usecase"
)

const adminPassword = "correct-horse"

type testEnv struct {
	handler  http.Handler
	verifier *payment.NoopVerifier
	coupons  *memory.CouponRepo
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := zerolog.Nop()
	coupons := memory.NewCouponRepo()
	purchases := memory.NewPurchaseRepo()
	verifier := payment.NewNoopVerifier()

	couponUC := usecase.NewCouponUseCase(coupons, verifier, nil, nil, &l)
	purchaseUC := usecase.NewPurchaseUseCase(purchases, &l)
	auth := NewAuthManager(adminPassword, "test-secret", false, "", 30*time.Minute)
	srv := NewServer(couponUC, purchaseUC, auth, &l)

	env := &testEnv{handler: srv.Router(), verifier: verifier, coupons: coupons}
	env.token = env.login(t)
	return env
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": adminPassword}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out["token"] == "" {
		t.Fatal("empty session token")
	}
	return out["token"]
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func futureMillis() int64 {
	return time.Now().Add(48 * time.Hour).UnixMilli()
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", rec.Code)
	}

	// protected route without a token
	rec = env.do(t, http.MethodGet, "/api/v1/coupons", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
}

func TestCouponCRUD(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// create, including a legacy type spelling
	rec := env.do(t, http.MethodPost, "/api/v1/coupons", map[string]any{
		"code": "eid 2024", "coins": 150, "type": "certain amount",
		"redeem_limit": 20, "validity": futureMillis(), "show_ads": true,
	}, env.token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created couponDTO
	_ = json.NewDecoder(rec.Body).Decode(&created)
	if created.Code != "EID2024" || created.Type != "certain_amount" {
		t.Fatalf("created = %+v", created)
	}

	// duplicate
	rec = env.do(t, http.MethodPost, "/api/v1/coupons", map[string]any{
		"code": "EID2024", "coins": 1, "type": "multiple", "validity": futureMillis(),
	}, env.token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}

	// unknown type
	rec = env.do(t, http.MethodPost, "/api/v1/coupons", map[string]any{
		"code": "BAD99", "coins": 1, "type": "forever", "validity": futureMillis(),
	}, env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d", rec.Code)
	}

	// get
	rec = env.do(t, http.MethodGet, "/api/v1/coupons/EID2024", nil, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/coupons/NOPE1", nil, env.token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d", rec.Code)
	}

	// update
	rec = env.do(t, http.MethodPut, "/api/v1/coupons/EID2024", map[string]any{"coins": 200}, env.token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/v1/coupons/EID2024", nil, env.token)
	var got couponDTO
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got.Coins != 200 {
		t.Fatalf("coins after update = %d", got.Coins)
	}

	// list
	rec = env.do(t, http.MethodGet, "/api/v1/coupons", nil, env.token)
	var all []couponDTO
	_ = json.NewDecoder(rec.Body).Decode(&all)
	if len(all) != 1 {
		t.Fatalf("list size = %d", len(all))
	}

	// delete
	rec = env.do(t, http.MethodDelete, "/api/v1/coupons/EID2024", nil, env.token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/coupons/EID2024", nil, env.token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestCouponCloneAndBatchDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, code := range []string{"SRC10", "SRC20"} {
		rec := env.do(t, http.MethodPost, "/api/v1/coupons", map[string]any{
			"code": code, "coins": 5, "type": "multiple", "validity": futureMillis(),
		}, env.token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %s status = %d", code, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/v1/coupons/SRC10/clone", map[string]string{"new_code": "COPY9"}, env.token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("clone status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var dup couponDTO
	_ = json.NewDecoder(rec.Body).Decode(&dup)
	if dup.Code != "COPY9" || dup.Coins != 5 {
		t.Fatalf("clone = %+v", dup)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/coupons/batch-delete", map[string]any{"codes": []string{"SRC10", "src20"}}, env.token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("batch delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/coupons", nil, env.token)
	var left []couponDTO
	_ = json.NewDecoder(rec.Body).Decode(&left)
	if len(left) != 1 || left[0].Code != "COPY9" {
		t.Fatalf("remaining = %+v", left)
	}
}

func TestPurchaseLedger(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/purchases", map[string]any{
		"txn_id": "bkx7712", "amount": 450, "message_source": "sms",
		"original_sms": "You have received Tk 450.00",
	}, env.token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var p purchaseDTO
	_ = json.NewDecoder(rec.Body).Decode(&p)
	if p.TxnID != "BKX7712" || p.ID == "" {
		t.Fatalf("purchase = %+v", p)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/purchases", nil, env.token)
	var all []purchaseDTO
	_ = json.NewDecoder(rec.Body).Decode(&all)
	if len(all) != 1 {
		t.Fatalf("ledger size = %d", len(all))
	}

	rec = env.do(t, http.MethodPut, "/api/v1/purchases/BKX7712/redeemed", map[string]bool{"redeemed": true}, env.token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set redeemed status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPut, "/api/v1/purchases/NOSUCH9/redeemed", map[string]bool{"redeemed": true}, env.token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("set redeemed missing status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/purchases", map[string]any{"txn_id": "X", "amount": 0}, env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid record status = %d", rec.Code)
	}
}

func TestPurchaseIssue(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.verifier.Put(&model.Purchase{ID: "p1", TxnID: "TXISSUE1", Amount: 500})

	body := map[string]any{
		"type": "coins", "name": "Coin Pack M", "description": "600 coins",
		"regular_price": 500, "coin_amount": 600,
	}
	rec := env.do(t, http.MethodPost, "/api/v1/purchases/txissue1/issue", body, env.token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var c couponDTO
	_ = json.NewDecoder(rec.Body).Decode(&c)
	if c.Code != "TXISSUE1" || c.Coins != 600 || c.Type != "single" {
		t.Fatalf("issued = %+v", c)
	}

	// second issue attempt hits the consumed purchase
	rec = env.do(t, http.MethodPost, "/api/v1/purchases/TXISSUE1/issue", body, env.token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("reissue status = %d", rec.Code)
	}

	// underpaid purchase
	env.verifier.Put(&model.Purchase{ID: "p2", TxnID: "TXPOOR22", Amount: 100})
	rec = env.do(t, http.MethodPost, "/api/v1/purchases/TXPOOR22/issue", body, env.token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("underpaid status = %d", rec.Code)
	}

	// unknown transaction
	rec = env.do(t, http.MethodPost, "/api/v1/purchases/TXNONE33/issue", body, env.token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing purchase status = %d", rec.Code)
	}

	// redeeming the issued coupon on the coupon store works end to end
	if _, err := env.coupons.FindByCode(context.Background(), nil, "TXISSUE1"); err != nil {
		t.Fatalf("issued coupon not stored: %v", err)
	}
}
