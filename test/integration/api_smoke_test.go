package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stripe/stripe-go/v84/webhook"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/app/apiapp"
	"github.com/numaken/genpost-sub001/internal/config"
	"github.com/numaken/genpost-sub001/internal/domain/model"
	sqliterepo "github.com/numaken/genpost-sub001/internal/repo/sqlite"
	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
)

const (
	webhookSecret  = "whsec_integration"
	identitySecret = "identity-integration"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	dbPath := filepath.Join(t.TempDir(), "genpost.db")
	db, err := sqliterepo.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	catalog := sqliterepo.NewCatalogRepo(db)
	for _, item := range []model.CatalogItem{
		{InternalID: 42, CanonicalID: "seo-basic-01", Name: "SEO basic", Price: 500, IsActive: true},
		{InternalID: 3, CanonicalID: "free-intro-01", Name: "Intro", IsFree: true, IsActive: true},
	} {
		if _, err := catalog.Insert(context.Background(), item); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}
	_ = db.Close()

	cfg := config.Default()
	cfg.HTTP.Addr = ":0"
	cfg.Store.Driver = "sqlite"
	cfg.SQLite.Path = dbPath
	cfg.Redis.Addr = mini.Addr()
	cfg.Stripe.WebhookSecret = webhookSecret
	cfg.Auth.IdentitySecret = identitySecret

	app, err := apiapp.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	})

	ts := httptest.NewServer(app.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}

	var payload struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.OK {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestWebhookGrantsAccess(t *testing.T) {
	ts := newServer(t)

	login := postJSON(t, ts.URL+"/v1/auth/login", "", dto.IdentityLoginRequest{
		Assertion: authsvc.SignAssertion(identitySecret, "Buyer@Example.com", time.Now()),
	})
	if login.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", login.StatusCode)
	}
	var tokens dto.AuthTokensResponse
	decode(t, login, &tokens)
	if tokens.Me.ID != "buyer@example.com" {
		t.Fatalf("unexpected me: %+v", tokens.Me)
	}

	before := getAccess(t, ts.URL, tokens.AccessToken, "seo-basic-01")
	if before.Available || before.Purchased {
		t.Fatalf("paid prompt should be locked before purchase: %+v", before)
	}

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_int_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_int_1","object":"checkout.session","payment_status":"paid","metadata":{"user_id":%q,"prompt_id":"42"}}}}`,
		"buyer@example.com",
	))
	for i := 0; i < 2; i++ {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    webhookSecret,
			Timestamp: time.Now(),
		})
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signed.Header)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post webhook: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delivery %d: unexpected status %d", i, resp.StatusCode)
		}
	}

	after := getAccess(t, ts.URL, tokens.AccessToken, "seo-basic-01")
	if !after.Available || !after.Purchased {
		t.Fatalf("prompt should be unlocked after webhook: %+v", after)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	var list dto.PurchaseListResponse
	decode(t, resp, &list)
	if len(list.Items) != 1 || list.Items[0].ItemID != "seo-basic-01" {
		t.Fatalf("expected one canonical purchase, got %+v", list.Items)
	}

	anonymous := getAccess(t, ts.URL, "", "free-intro-01")
	if !anonymous.Available || anonymous.Purchased {
		t.Fatalf("free prompt should be available anonymously: %+v", anonymous)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ts := newServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/webhooks/stripe", bytes.NewReader([]byte(`{"id":"evt_x"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func getAccess(t *testing.T, baseURL, token, promptID string) dto.PromptAccessResponse {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, baseURL+"/v1/prompts/"+promptID+"/access", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get access: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("access status: %d", resp.StatusCode)
	}
	var out dto.PromptAccessResponse
	decode(t, resp, &out)
	return out
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
