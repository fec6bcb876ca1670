package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget-tracker-backend/internal/database"
	"budget-tracker-backend/internal/extract"
	"budget-tracker-backend/internal/kv"
	"budget-tracker-backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCompleter struct {
	calls int
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, extract.Request) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newServer(t *testing.T, store kv.Store, completer extract.Completer) *gin.Engine {
	t.Helper()
	repo := database.NewKVRepository(store, "budgetapp:")
	h := New(repo, extract.NewExtractor(completer, 50), Options{StoreBackend: "memory", MaxUploadBytes: 1 << 20})

	r := gin.New()
	r.Use(middleware.RequestID())
	h.Register(r.Group("/api"))
	return r
}

func newMemoryServer(t *testing.T) *gin.Engine {
	return newServer(t, kv.NewMemory(), nil)
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func createProject(t *testing.T, r http.Handler, name string) int64 {
	t.Helper()
	code, body := do(t, r, http.MethodPost, "/api/projects", gin.H{"name": name})
	require.Equal(t, http.StatusOK, code, body)
	return int64(body["project_id"].(float64))
}

func TestProjects(t *testing.T) {
	r := newMemoryServer(t)

	code, body := do(t, r, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{}, body["projects"])

	id := createProject(t, r, "Household")

	code, body = do(t, r, http.MethodGet, "/api/projects/1", nil)
	require.Equal(t, http.StatusOK, code)
	project := body["project"].(map[string]any)
	assert.Equal(t, "Household", project["name"])
	assert.Equal(t, float64(id), project["id"])

	code, body = do(t, r, http.MethodDelete, "/api/projects/1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Project deleted successfully", body["message"])

	code, body = do(t, r, http.MethodGet, "/api/projects/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "project not found", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCreateProject_Validation(t *testing.T) {
	r := newMemoryServer(t)

	code, body := do(t, r, http.MethodPost, "/api/projects", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "name is required", body["error"])

	code, body = do(t, r, http.MethodPost, "/api/projects", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "invalid JSON body")

	code, body = do(t, r, http.MethodPost, "/api/projects", gin.H{"name": strings.Repeat("n", 256)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "name must be at most 255 characters", body["error"])

	code, _ = do(t, r, http.MethodGet, "/api/projects/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCategories(t *testing.T) {
	r := newMemoryServer(t)
	createProject(t, r, "Household")

	code, body := do(t, r, http.MethodPost, "/api/projects/1/categories", gin.H{"name": "Rent", "type": "Expenses"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(1), body["category_id"])

	code, body = do(t, r, http.MethodPost, "/api/projects/1/categories", gin.H{"name": "Gifts", "type": "Presents"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "type must be one of Income, Expenses, Savings", body["error"])

	code, _ = do(t, r, http.MethodPost, "/api/projects/9/categories", gin.H{"name": "Rent", "type": "Expenses"})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, r, http.MethodGet, "/api/projects/1/categories?type=Expenses", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["categories"], 1)

	code, body = do(t, r, http.MethodGet, "/api/projects/1/categories?type=Income", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["categories"])

	code, _ = do(t, r, http.MethodGet, "/api/projects/1/categories?type=Bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodDelete, "/api/categories/1", nil)
	assert.Equal(t, http.StatusOK, code)
	code, body = do(t, r, http.MethodDelete, "/api/categories/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "category not found", body["error"])
}

func TestTransactions_CreateValidation(t *testing.T) {
	r := newMemoryServer(t)
	createProject(t, r, "Household")

	tests := []struct {
		name string
		body gin.H
		want string
	}{
		{"missing amount", gin.H{"date": "2024-03-05", "type": "Income", "category": "Salary"}, "amount is required"},
		{"negative amount", gin.H{"date": "2024-03-05", "type": "Income", "category": "Salary", "amount": -1}, "amount must not be negative"},
		{"bad type", gin.H{"date": "2024-03-05", "type": "Refund", "category": "Salary", "amount": 1}, "type must be one of Income, Expenses, Savings"},
		{"missing category", gin.H{"date": "2024-03-05", "type": "Income", "amount": 1}, "category is required"},
		{"missing date", gin.H{"type": "Income", "category": "Salary", "amount": 1}, "date is required"},
		{"long date", gin.H{"date": strings.Repeat("1", 65), "type": "Income", "category": "Salary", "amount": 1}, "date must be at most 64 characters"},
		{"long category", gin.H{"date": "2024-03-05", "type": "Income", "category": strings.Repeat("c", 256), "amount": 1}, "category must be at most 255 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, r, http.MethodPost, "/api/projects/1/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.want, body["error"])
		})
	}

	code, body := do(t, r, http.MethodPost, "/api/projects/1/transactions",
		gin.H{"date": "2024-03-05", "type": "Savings", "category": "", "amount": 0})
	assert.Equal(t, http.StatusOK, code, body)

	code, _ = do(t, r, http.MethodPost, "/api/projects/5/transactions",
		gin.H{"date": "2024-03-05", "type": "Income", "category": "Salary", "amount": 1})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTransactions_SummaryAndBreakdown(t *testing.T) {
	r := newMemoryServer(t)
	createProject(t, r, "Household")

	for _, tx := range []gin.H{
		{"date": "2024-03-05", "type": "Income", "category": "Salary", "amount": 100},
		{"date": "2024-03-20", "type": "Expenses", "category": "Rent", "amount": 40, "description": "March rent"},
	} {
		code, body := do(t, r, http.MethodPost, "/api/projects/1/transactions", tx)
		require.Equal(t, http.StatusOK, code, body)
	}

	code, body := do(t, r, http.MethodGet, "/api/projects/1/summary", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"03/2024": map[string]any{"Income": float64(100), "Expenses": float64(40), "Savings": float64(0)},
	}, body["summary"])

	code, body = do(t, r, http.MethodGet, "/api/projects/1/breakdown?month=03/2024&type=Expenses", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"Rent": float64(40)}, body["breakdown"])

	code, body = do(t, r, http.MethodGet, "/api/projects/1/breakdown?month=04/2024&type=Savings", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{}, body["breakdown"])

	code, body = do(t, r, http.MethodGet, "/api/projects/1/breakdown?month=03/2024", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "month and type are required", body["error"])

	code, _ = do(t, r, http.MethodGet, "/api/projects/1/breakdown?month=2024-03&type=Income", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodGet, "/api/projects/1/transactions?month=03/2024", nil)
	require.Equal(t, http.StatusOK, code)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, "2024-03-20", txs[0].(map[string]any)["date"])
	assert.NotContains(t, txs[0].(map[string]any), "month_key")
}

func TestTransactions_UpdateAndDelete(t *testing.T) {
	r := newMemoryServer(t)
	createProject(t, r, "Household")
	code, _ := do(t, r, http.MethodPost, "/api/projects/1/transactions",
		gin.H{"date": "2024-03-05", "type": "Expenses", "category": "Rent", "amount": 40})
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, r, http.MethodPut, "/api/transactions/1", gin.H{"date": "2024-04-02", "amount": 42.5})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Transaction updated successfully", body["message"])

	_, body = do(t, r, http.MethodGet, "/api/projects/1/transactions?month=03/2024", nil)
	assert.Equal(t, []any{}, body["transactions"])
	_, body = do(t, r, http.MethodGet, "/api/projects/1/transactions?month=04/2024", nil)
	require.Len(t, body["transactions"], 1)
	assert.Equal(t, 42.5, body["transactions"].([]any)[0].(map[string]any)["amount"])

	code, body = do(t, r, http.MethodPut, "/api/transactions/1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no updatable fields provided", body["error"])

	code, _ = do(t, r, http.MethodPut, "/api/transactions/1", gin.H{"type": "Other"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodPut, "/api/transactions/1", gin.H{"date": strings.Repeat("1", 65)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "date must be at most 64 characters", body["error"])

	code, body = do(t, r, http.MethodPut, "/api/transactions/99", gin.H{"amount": 1})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "transaction not found", body["error"])

	code, _ = do(t, r, http.MethodDelete, "/api/transactions/1", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodDelete, "/api/transactions/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTransactions_Batch(t *testing.T) {
	r := newMemoryServer(t)
	createProject(t, r, "Household")

	code, body := do(t, r, http.MethodPost, "/api/projects/1/transactions/batch", gin.H{"transactions": []gin.H{
		{"date": "2024-03-01", "type": "Income", "category": "Salary", "amount": 10},
		{"date": "2024-03-02", "type": "Expenses", "category": "Food", "amount": 3},
	}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []any{float64(1), float64(2)}, body["transaction_ids"])

	code, body = do(t, r, http.MethodPost, "/api/projects/1/transactions/batch", gin.H{"transactions": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "transactions must contain at least one item", body["error"])

	code, body = do(t, r, http.MethodPost, "/api/projects/1/transactions/batch", gin.H{"transactions": []gin.H{
		{"date": "2024-03-01", "type": "Income", "category": "Salary", "amount": 10},
		{"date": "2024-03-02", "type": "Expenses", "category": "Food", "amount": -3},
	}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "transactions[1].amount must not be negative", body["error"])

	_, body = do(t, r, http.MethodGet, "/api/projects/1/transactions", nil)
	assert.Len(t, body["transactions"], 2)
}

// flakyStore fails every HSet after the first n.
type flakyStore struct {
	*kv.Memory
	n int
}

func (f *flakyStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if f.n <= 0 {
		return errors.New("connection reset by peer")
	}
	f.n--
	return f.Memory.HSet(ctx, key, fields)
}

func TestTransactions_BatchPartialFailure(t *testing.T) {
	store := &flakyStore{Memory: kv.NewMemory(), n: 2}
	r := newServer(t, store, nil)
	createProject(t, r, "Household")

	code, body := do(t, r, http.MethodPost, "/api/projects/1/transactions/batch", gin.H{"transactions": []gin.H{
		{"date": "2024-03-01", "type": "Income", "category": "Salary", "amount": 10},
		{"date": "2024-03-02", "type": "Expenses", "category": "Food", "amount": 3},
	}})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, []any{float64(1)}, body["transaction_ids"])
}

func TestStorageUnavailable(t *testing.T) {
	lazy := kv.NewLazy(func(context.Context) (kv.Store, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, time.Minute)
	r := newServer(t, lazy, nil)

	code, body := do(t, r, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "storage unavailable", body["error"])
	assert.NotEmpty(t, body["request_id"])

	code, body = do(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["store_connected"])
	assert.Equal(t, false, body["openai_configured"])
}

func TestHealth(t *testing.T) {
	r := newServer(t, kv.NewMemory(), &fakeCompleter{})

	code, body := do(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Budget Management API is running", body["message"])
	assert.Equal(t, true, body["openai_configured"])
	assert.Equal(t, true, body["store_connected"])
	assert.Equal(t, "memory", body["store_backend"])
}

func upload(t *testing.T, r http.Handler, fileType, filename string, content []byte) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("fileType", fileType))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract-data", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestExtractData_JSON(t *testing.T) {
	r := newMemoryServer(t)

	code, body := upload(t, r, "json", "tx.json",
		[]byte(`{"transactions":[{"date":"2023-01-01","amount":100.0,"description":"x","type":"Income"}]}`))
	require.Equal(t, http.StatusOK, code, body)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	record := data[0].(map[string]any)
	assert.Equal(t, "2023-01-01", record["date"])
	assert.Equal(t, float64(100), record["amount"])
	assert.Equal(t, "Income", record["type"])

	code, body = upload(t, r, "json", "tx.json", []byte(`{"rows":[]}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestExtractData_UnsupportedTypeNeverCallsProvider(t *testing.T) {
	fake := &fakeCompleter{reply: "[]"}
	r := newServer(t, kv.NewMemory(), fake)

	code, body := upload(t, r, "pdf", "statement.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unsupported fileType")
	assert.Zero(t, fake.calls)
}

func TestExtractData_CSV(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n[{\"date\":\"03/05/2024\",\"amount\":12,\"description\":\"Lunch\"}]\n```"}
	r := newServer(t, kv.NewMemory(), fake)

	code, body := upload(t, r, "csv", "bank.csv", []byte("Date,Amount,Description\n03/05/2024,-12,Lunch\n"))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 1, fake.calls)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "2024-03-05", data[0].(map[string]any)["date"])
}

func TestExtractData_Errors(t *testing.T) {
	r := newMemoryServer(t)

	code, body := upload(t, r, "csv", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No file uploaded", body["error"])

	code, body = upload(t, r, "csv", "bank.csv", []byte("Date,Amount\n2024-01-01,1\n"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body["error"], "OPENAI_API_KEY")
	assert.Equal(t, "api_key_missing", body["kind"])

	code, body = upload(t, r, "json", "big.json", []byte(strings.Repeat(" ", 2<<20)))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestExtractData_ErrorKindSeparatesSameStatus(t *testing.T) {
	fake := &fakeCompleter{err: extract.ProviderError(http.StatusServiceUnavailable, "overloaded", errors.New("503"))}
	r := newServer(t, kv.NewMemory(), fake)

	code, body := upload(t, r, "csv", "bank.csv", []byte("Date,Amount\n2024-01-01,1\n"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "provider_server", body["kind"])

	code, body = upload(t, r, "pdf", "statement.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unsupported_file_type", body["kind"])
}
