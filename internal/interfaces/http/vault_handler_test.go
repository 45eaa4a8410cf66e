package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/auth"
	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/internal/application/usecase"
	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/memory"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/goldvault-api/internal/interfaces/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// App completa sobre el almacén en memoria
// ──────────────────────────────────────────────────────────────────────────────

type testAPI struct {
	app   *fiber.App
	store *memory.Store
	admin string
	user  string
}

type busyLocker struct{}

func (busyLocker) Obtain(context.Context, string) (func(context.Context) error, error) {
	return nil, domain.ErrConflict
}

func newTestAPI(t *testing.T, locker vault.SyncLocker) *testAPI {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	auditSvc := audit.NewService(store.AuditLogs())
	authUC := auth.NewAuthUseCase(store.Users(), auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: testExpMin, Issuer: testIssuer}).
		WithBcryptCost(bcrypt.MinCost)
	vaultSvc := vault.NewService(vault.ServiceDeps{
		TxRunner:  store,
		Ledger:    store.Ledger(),
		Stock:     store.Stock(),
		Companies: store.Companies(),
		Audit:     auditSvc,
		Locker:    locker,
		Reports:   pdf.NewStockReportGenerator("goldvault-test"),
	}, vault.Options{AtomicWrites: true})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:     authUC,
		CompanyUC:  usecase.NewCompanyUseCase(store.Companies(), auditSvc, nil),
		TransferUC: usecase.NewTransferUseCase(store.Transfers(), auditSvc, nil, nil),
		UserUC:     usecase.NewUserUseCase(store.Users(), auditSvc, nil).WithBcryptCost(bcrypt.MinCost),
		Vault:      vaultSvc,
		Audit:      auditSvc,
		JWTSecret:  testJWTSecret,
	})

	_, err := authUC.EnsureAdmin(ctx, "admin", "admin-password")
	require.NoError(t, err)
	_, err = authUC.RegisterUser(ctx, dto.RegisterRequest{Username: "operador", Password: "operador-pass"})
	require.NoError(t, err)

	api := &testAPI{app: app, store: store}
	api.admin = api.login(t, "admin", "admin-password")
	api.user = api.login(t, "operador", "operador-pass")
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (a *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Token
}

type stockRow struct {
	Karat  int    `json:"karat"`
	Amount string `json:"amount"`
}

func (a *testAPI) stock(t *testing.T) []stockRow {
	t.Helper()
	resp, body := a.do(t, http.MethodGet, "/api/vault/stock", a.user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []stockRow
	require.NoError(t, json.Unmarshal(body, &rows))
	return rows
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

// ──────────────────────────────────────────────────────────────────────────────
// Flujo completo
// ──────────────────────────────────────────────────────────────────────────────

func TestVaultAPI_FlujoCompleto(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, body := api.do(t, http.MethodPost, "/api/vault/transactions", api.user, map[string]any{
		"type": "deposit", "amount": 100, "karat": 24, "notes": "lingote",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = api.do(t, http.MethodPost, "/api/vault/transactions", api.user, map[string]any{
		"type": "withdrawal", "amount": "30.5", "karat": 24,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var withdrawal struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(body, &withdrawal))
	assert.Equal(t, "operador", withdrawal.Username)

	rows := api.stock(t)
	require.Len(t, rows, 1)
	assert.Equal(t, 24, rows[0].Karat)
	assert.Equal(t, "69.5", rows[0].Amount)

	resp, body = api.do(t, http.MethodGet, "/api/vault/transactions?karat=24", api.user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txns []map[string]any
	require.NoError(t, json.Unmarshal(body, &txns))
	require.Len(t, txns, 2)
	assert.Equal(t, withdrawal.ID, txns[0]["id"], "más recientes primero")

	resp, _ = api.do(t, http.MethodDelete, "/api/vault/transactions/"+withdrawal.ID, api.user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100", api.stock(t)[0].Amount)

	resp, body = api.do(t, http.MethodDelete, "/api/vault/transactions/"+withdrawal.ID, api.user, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestVaultAPI_Validacion(t *testing.T) {
	api := newTestAPI(t, nil)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"cantidad cero", map[string]any{"type": "deposit", "amount": 0, "karat": 18}},
		{"cantidad negativa", map[string]any{"type": "deposit", "amount": -5, "karat": 18}},
		{"tipo desconocido", map[string]any{"type": "loan", "amount": 5, "karat": 18}},
		{"quilate fuera de rango", map[string]any{"type": "deposit", "amount": 5, "karat": 30}},
		{"contraparte no uuid", map[string]any{"type": "deposit", "amount": 5, "karat": 18, "company_id": "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := api.do(t, http.MethodPost, "/api/vault/transactions", api.user, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
			assert.Equal(t, "VALIDATION", errorCode(t, body))
		})
	}
	assert.Empty(t, api.stock(t))

	resp, _ := api.do(t, http.MethodGet, "/api/vault/transactions?type=loan", api.user, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVaultAPI_SinToken(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, _ := api.do(t, http.MethodGet, "/api/vault/stock", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Rutas de administración
// ──────────────────────────────────────────────────────────────────────────────

func TestVaultAPI_SyncYVerify(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, _ := api.do(t, http.MethodPost, "/api/vault/transactions", api.user, map[string]any{
		"type": "deposit", "amount": 100, "karat": 24,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/vault/stock/sync", api.user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "solo admin")

	api.store.OverwriteStock(24, mustDecimal("999"))

	resp, body := api.do(t, http.MethodGet, "/api/vault/stock/verify", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verify dto.VerifyStockResponse
	require.NoError(t, json.Unmarshal(body, &verify))
	assert.False(t, verify.InSync)
	require.Len(t, verify.Drifts, 1)
	assert.Equal(t, "899", verify.Drifts[0].Difference.String())

	resp, body = api.do(t, http.MethodPost, "/api/vault/stock/sync", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var sync dto.SyncStockResponse
	require.NoError(t, json.Unmarshal(body, &sync))
	assert.Equal(t, 1, sync.Processed)
	assert.Equal(t, "100", api.stock(t)[0].Amount)

	resp, body = api.do(t, http.MethodPost, "/api/vault/stock/sync?karat=abc", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, body))

	resp, _ = api.do(t, http.MethodPost, "/api/vault/stock/sync?karat=24", api.admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVaultAPI_SyncEnCurso(t *testing.T) {
	api := newTestAPI(t, busyLocker{})
	resp, body := api.do(t, http.MethodPost, "/api/vault/stock/sync", api.admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errorCode(t, body))
}

func TestVaultAPI_Reporte(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/vault/stock/report", nil)
	req.Header.Set("Authorization", "Bearer "+api.user)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestAPI_LogsYRegistro(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, _ := api.do(t, http.MethodPost, "/api/vault/transactions", api.user, map[string]any{
		"type": "deposit", "amount": 10, "karat": 18,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/logs", api.user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := api.do(t, http.MethodGet, "/api/logs?search=18k&page=1&limit=10", api.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs dto.AuditLogListResponse
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Equal(t, 1, logs.Total)
	assert.Equal(t, "deposit: 10.00g (18k)", logs.Items[0].Details)
	assert.Equal(t, "operador", logs.Items[0].Username)

	resp, _ = api.do(t, http.MethodPost, "/api/auth/register", api.user, map[string]string{
		"username": "nuevo", "password": "12345678",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.do(t, http.MethodPost, "/api/auth/register", api.admin, map[string]string{
		"username": "nuevo", "password": "12345678",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = api.do(t, http.MethodPost, "/api/auth/register", api.admin, map[string]string{
		"username": "NUEVO", "password": "12345678",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", errorCode(t, body))

	resp, _ = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin", "password": "incorrecta",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCompanyAPI_CRUDYOperaciones(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, body := api.do(t, http.MethodPost, "/api/companies", api.user, map[string]string{
		"name": "Kuyumcu", "type": "company",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var company dto.CompanyResponse
	require.NoError(t, json.Unmarshal(body, &company))

	resp, body = api.do(t, http.MethodPost, "/api/vault/transactions", api.user, map[string]any{
		"type": "deposit", "amount": 5, "karat": 22, "company_id": company.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var txn dto.VaultTransactionResponse
	require.NoError(t, json.Unmarshal(body, &txn))
	assert.Equal(t, "Kuyumcu", txn.CompanyName)

	resp, _ = api.do(t, http.MethodPut, "/api/companies/"+company.ID, api.user, map[string]string{"type": "robot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/companies/"+company.ID, api.user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/companies/"+company.ID, api.user, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "5", api.stock(t)[0].Amount, "borrar la contraparte no toca el stock")
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }
