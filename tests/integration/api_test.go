package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "credit-ledger/internal/adapter/http/handler"
	redisStorage "credit-ledger/internal/adapter/storage/redis"
	"credit-ledger/internal/core/ports"
	"credit-ledger/internal/service"
	"credit-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack on in-memory storage: miniredis
// behind the reference cache and lock-simulating in-memory repos behind the
// service. This exercises the real HTTP layer, middleware, handlers, service
// and codec end-to-end.

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type testApp struct {
	server     *httptest.Server
	redis      *miniredis.Miniredis
	ledgerSvc  ports.LedgerService
	transactor ports.DBTransactor
	token      string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	refCache := redisStorage.NewReferenceCache(rdb)

	codec, err := service.NewAESBalanceCodec(testMasterKey)
	require.NoError(t, err)
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")

	store := newMemStore()
	accountRepo := newMemAccountRepo(store)
	entryRepo := newMemEntryRepo(store)
	transactor := newMemTransactor(store)

	log := logger.New("debug", false)
	ledgerSvc := service.NewLedgerService(accountRepo, entryRepo, refCache, codec, transactor, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc: ledgerSvc,
		TokenSvc:  tokenSvc,
		Logger:    log,
	})

	token, err := tokenSvc.Generate("order-processing")
	require.NoError(t, err)

	return &testApp{
		server:     httptest.NewServer(router),
		redis:      mr,
		ledgerSvc:  ledgerSvc,
		transactor: transactor,
		token:      token,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

func (a *testApp) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dataOf(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data envelope: %v", body)
	return data
}

func TestLedgerLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := uuid.NewString()
	base := "/api/v1/ledger/" + userID

	// Fresh user reads as zero, no account row needed.
	resp := app.do(t, "GET", base+"/balance", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(0), dataOf(t, resp)["balance"])

	// Credit 500
	resp = app.do(t, "POST", base+"/credit", `{"amount":500,"description":"initial top-up"}`)
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, float64(500), dataOf(t, resp)["new_balance"])

	// Debit 200
	resp = app.do(t, "POST", base+"/debit", `{"amount":200,"description":"purchase"}`)
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, float64(300), dataOf(t, resp)["new_balance"])

	// Refund 100
	resp = app.do(t, "POST", base+"/refund", `{"amount":100,"description":"partial return"}`)
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, float64(400), dataOf(t, resp)["new_balance"])

	// History: three entries, newest first, spend negated.
	resp = app.do(t, "GET", base+"/history", "")
	require.Equal(t, 200, resp.StatusCode)
	data := dataOf(t, resp)
	assert.Equal(t, float64(3), data["total"])
	entries := data["entries"].([]interface{})
	require.Len(t, entries, 3)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "REFUND", first["type"])
	assert.Equal(t, float64(100), first["amount"])
	last := entries[2].(map[string]interface{})
	assert.Equal(t, "DEPOSIT", last["type"])

	// Reconcile: balance equals entry sum.
	resp = app.do(t, "GET", base+"/reconcile", "")
	require.Equal(t, 200, resp.StatusCode)
	data = dataOf(t, resp)
	assert.Equal(t, float64(400), data["balance"])
	assert.Equal(t, float64(400), data["entry_sum"])
	assert.Equal(t, true, data["consistent"])
}

func TestDebitInsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := uuid.NewString()
	base := "/api/v1/ledger/" + userID

	resp := app.do(t, "POST", base+"/credit", `{"amount":100,"description":"top-up"}`)
	require.Equal(t, 201, resp.StatusCode)
	resp.Body.Close()

	// Overdraw attempt writes nothing.
	resp = app.do(t, "POST", base+"/debit", `{"amount":150,"description":"too big"}`)
	assert.Equal(t, 402, resp.StatusCode)
	assert.Equal(t, "LED_002", decodeBody(t, resp)["error_code"])

	resp = app.do(t, "GET", base+"/balance", "")
	assert.Equal(t, float64(100), dataOf(t, resp)["balance"])

	resp = app.do(t, "GET", base+"/history", "")
	assert.Equal(t, float64(1), dataOf(t, resp)["total"])
}

func TestDebitUntouchedUser(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.do(t, "POST", "/api/v1/ledger/"+uuid.NewString()+"/debit",
		`{"amount":10,"description":"spend from nothing"}`)
	assert.Equal(t, 402, resp.StatusCode)
	assert.Equal(t, "LED_002", decodeBody(t, resp)["error_code"])
}

func TestDuplicateReference(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := uuid.NewString()
	base := "/api/v1/ledger/" + userID
	body := `{"amount":50,"description":"order reward","reference_id":"order-7"}`

	resp := app.do(t, "POST", base+"/credit", body)
	require.Equal(t, 201, resp.StatusCode)
	resp.Body.Close()

	// Retry hits the cache fast path.
	resp = app.do(t, "POST", base+"/credit", body)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "LED_004", decodeBody(t, resp)["error_code"])

	// Even with the cache wiped, the log query catches the duplicate.
	app.redis.FlushAll()
	resp = app.do(t, "POST", base+"/credit", body)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "LED_004", decodeBody(t, resp)["error_code"])

	// Same reference for a different entry type is a distinct operation.
	resp = app.do(t, "POST", base+"/debit", `{"amount":20,"description":"spend","reference_id":"order-7"}`)
	assert.Equal(t, 201, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, "GET", base+"/balance", "")
	assert.Equal(t, float64(30), dataOf(t, resp)["balance"])
}

func TestInvalidAmount(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	base := "/api/v1/ledger/" + uuid.NewString()

	for _, body := range []string{
		`{"amount":0,"description":"zero"}`,
		`{"amount":-5,"description":"negative"}`,
	} {
		resp := app.do(t, "POST", base+"/credit", body)
		assert.Equal(t, 400, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestUnauthorizedRequest(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	req, err := http.NewRequest("GET", app.server.URL+"/api/v1/ledger/"+uuid.NewString()+"/balance", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "AUTH_001", decodeBody(t, resp)["error_code"])

	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	resp.Body.Close()
}

// TestJoinedTransactionAtomicity drives the service directly with a
// caller-owned transaction: both mutations must become visible together on
// commit and vanish together on rollback.
func TestJoinedTransactionAtomicity(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ctx := context.Background()
	userID := uuid.New()

	// Rollback discards both credits.
	tx, err := app.transactor.Begin(ctx)
	require.NoError(t, err)
	_, err = app.ledgerSvc.Credit(ctx, ports.MutationRequest{UserID: userID, Amount: 100, Description: "first", Tx: tx})
	require.NoError(t, err)
	_, err = app.ledgerSvc.Credit(ctx, ports.MutationRequest{UserID: userID, Amount: 50, Description: "second", Tx: tx})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	balance, err := app.ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// Commit lands both.
	tx, err = app.transactor.Begin(ctx)
	require.NoError(t, err)
	_, err = app.ledgerSvc.Credit(ctx, ports.MutationRequest{UserID: userID, Amount: 100, Description: "first", Tx: tx})
	require.NoError(t, err)
	newBalance, err := app.ledgerSvc.Credit(ctx, ports.MutationRequest{UserID: userID, Amount: 50, Description: "second", Tx: tx})
	require.NoError(t, err)
	assert.Equal(t, int64(150), newBalance)
	require.NoError(t, tx.Commit(ctx))

	balance, err = app.ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	result, err := app.ledgerSvc.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
}

func TestHistoryPagination(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := uuid.NewString()
	base := "/api/v1/ledger/" + userID

	for i := 0; i < 5; i++ {
		resp := app.do(t, "POST", base+"/credit", fmt.Sprintf(`{"amount":%d,"description":"batch %d"}`, 10+i, i))
		require.Equal(t, 201, resp.StatusCode)
		resp.Body.Close()
	}

	resp := app.do(t, "GET", base+"/history?page=2&page_size=2", "")
	require.Equal(t, 200, resp.StatusCode)
	data := dataOf(t, resp)
	assert.Equal(t, float64(5), data["total"])
	assert.Len(t, data["entries"], 2)
	assert.Equal(t, float64(2), data["page"])
}
