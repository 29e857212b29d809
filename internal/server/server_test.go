package server

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

	"github.com/iwvelando/loan-simulator/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const compareBody = `{
  "loan": {"principal": 500000, "annualRate": 8, "termYears": 20, "startDate": "2025-01-15"},
  "extraPayments": {"mode": "monthly", "extraMonthlyAmount": 2000}
}`

const uploadConfig = `logging:
  level: info
loan:
  principal: 500000
  annualRate: 8
  termYears: 20
  startDate: "2025-01-15"
scenarios:
  - name: Ten Years
    active: true
    extraPayments:
      mode: monthly
    optimize:
      field: extraMonthlyAmount
      targetPayoffMonths: 120
  - name: Lump Sums
    active: true
    extraPayments:
      mode: yearly
      yearlyLumpSum: 10000
      lumpSumYears: 3
  - name: Disabled
    active: false
    extraPayments:
      extraMonthlyAmount: 10
`

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, contents string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "config.yaml")
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload["error"]
}

func TestCompare(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{Cache: cache.NewMemory(8), CacheTTL: time.Minute})

	rec := postJSON(t, h, "/api/compare", compareBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var first compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.Duration)
	assert.Equal(t, 4182.20, first.Summary.BasePayment)
	assert.Equal(t, 240, first.Summary.Standard.PayoffMonth)
	assert.Equal(t, 117, first.Summary.Extra.PayoffMonth)
	assert.Equal(t, "2034-10-15", first.Summary.Extra.PayoffDate)
	assert.Equal(t, 282879.34, first.Summary.InterestSaved)
	assert.Empty(t, first.Summary.Schedule)
	require.Len(t, first.Rows, 240)
	assert.Equal(t, 497151.13, first.Rows[0].ExtraBalance)
	assert.Equal(t, 848.87, first.Rows[0].StandardPrincipal)
	assert.True(t, strings.HasPrefix(first.CSV, "month,date,"))
	assert.Empty(t, first.Summary.Yearly)
	require.Len(t, first.Yearly, 20)
	assert.Equal(t, 10, first.Yearly[9].Year)
	assert.Equal(t, 0.0, first.Yearly[9].ExtraBalance)
	assert.Equal(t, 0.0, first.Yearly[10].ExtraPrincipal)
	assert.True(t, strings.HasPrefix(first.YearlyCSV, "scenario,year,year end,"))
	assert.Len(t, strings.Split(strings.TrimSpace(first.YearlyCSV), "\n"), 21)
	assert.Empty(t, first.Warnings)

	rec = postJSON(t, h, "/api/compare", compareBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var second compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.CSV, second.CSV)
	assert.Equal(t, first.Yearly, second.Yearly)
}

func TestCompareWarnings(t *testing.T) {
	h := NewHandler(nil, Options{})
	body := `{"loan": {"principal": 1000, "annualRate": 5, "termYears": 1, "startDate": "2025-01"}}`

	rec := postJSON(t, h, "/api/compare", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Warnings, 1)
	assert.Contains(t, response.Warnings[0], "no extra payments")
	assert.Equal(t, response.Summary.Standard.TotalInterest, response.Summary.Extra.TotalInterest)
	assert.Equal(t, 0, response.Summary.MonthsSaved)
}

func TestCompareCacheFailuresDoNotFailRequests(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := NewHandler(zap.New(core), Options{Cache: failingCache{}})

	rec := postJSON(t, h, "/api/compare", compareBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.False(t, response.Cached)
	assert.Equal(t, 117, response.Summary.Extra.PayoffMonth)

	assert.Equal(t, 1, logs.FilterMessage("result cache lookup failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("result cache store failed").Len())
}

func TestCompareRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		contains string
	}{
		{
			name:     "negative principal",
			body:     `{"loan": {"principal": -1, "annualRate": 8, "termYears": 20, "startDate": "2025-01-15"}}`,
			status:   http.StatusBadRequest,
			contains: "principal",
		},
		{
			name:     "term too long",
			body:     `{"loan": {"principal": 1000, "annualRate": 0, "termYears": 100000000, "startDate": "2025-01-15"}}`,
			status:   http.StatusBadRequest,
			contains: "termYears",
		},
		{
			name:     "term overflows the month count",
			body:     `{"loan": {"principal": 1000, "annualRate": 5, "termYears": 1537228672809129302, "startDate": "2025-01-15"}}`,
			status:   http.StatusBadRequest,
			contains: "termYears",
		},
		{
			name:     "bad start date",
			body:     `{"loan": {"principal": 1000, "annualRate": 8, "termYears": 20, "startDate": "soon"}}`,
			status:   http.StatusBadRequest,
			contains: "startDate",
		},
		{
			name:     "explicit zero lump sum years",
			body:     `{"loan": {"principal": 1000, "annualRate": 8, "termYears": 20, "startDate": "2025-01"}, "extraPayments": {"mode": "yearly", "yearlyLumpSum": 100, "lumpSumYears": 0}}`,
			status:   http.StatusBadRequest,
			contains: "lumpSumYears",
		},
		{
			name:     "unknown mode",
			body:     `{"loan": {"principal": 1000, "annualRate": 8, "termYears": 20, "startDate": "2025-01"}, "extraPayments": {"mode": "weekly"}}`,
			status:   http.StatusBadRequest,
			contains: "mode",
		},
		{
			name:     "unknown field",
			body:     `{"loan": {"principal": 1000, "annualRate": 8, "termYears": 20, "startDate": "2025-01"}, "fees": 10}`,
			status:   http.StatusBadRequest,
			contains: "fees",
		},
		{
			name:     "malformed json",
			body:     `{"loan": `,
			status:   http.StatusBadRequest,
			contains: "failed to decode request",
		},
	}

	h := NewHandler(zap.NewNop(), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/compare", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.contains)
		})
	}
}

func TestCompareBodyTooLarge(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{MaxUploadSize: 32})
	rec := postJSON(t, h, "/api/compare", compareBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})
	for _, path := range []string{"/api/compare", "/api/forecast", "/api/solve", "/api/config/export"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestForecastUpload(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/forecast", uploadConfig, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response forecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, []string{"Ten Years", "Lump Sums"}, response.Scenarios)
	require.Len(t, response.Reports, 2)
	assert.Contains(t, response.Warnings, `scenario "Disabled" is inactive and will be skipped`)

	optimized := response.Reports[0]
	require.Len(t, optimized.Optimizations, 1)
	assert.InDelta(t, 1884.19, optimized.Optimizations[0].Value, 0.011)
	assert.Equal(t, 120, optimized.Extra.PayoffMonth)
	assert.Len(t, optimized.Schedule, 240)
	assert.Contains(t, response.ConfigYAML, "extraMonthlyAmount: 1884.")

	lump := response.Reports[1]
	assert.Empty(t, lump.Optimizations)
	assert.Equal(t, 213, lump.Extra.PayoffMonth)
	assert.Equal(t, 30000.0, lump.Extra.TotalExtraPaid)

	records := strings.Split(strings.TrimSpace(response.CSV), "\n")
	assert.Len(t, records, 241)
}

func TestForecastUploadWithoutOptimizer(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/forecast", uploadConfig, map[string]string{"optimize": "false"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response forecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Reports, 2)
	assert.Empty(t, response.Reports[0].Optimizations)
	assert.Equal(t, 240, response.Reports[0].Extra.PayoffMonth)
	assert.Equal(t, uploadConfig, response.ConfigYAML)
}

func TestForecastUploadErrors(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})

	t.Run("missing file", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("optimize", "true"))
		require.NoError(t, writer.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/forecast", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing configuration file", decodeError(t, rec))
	})

	t.Run("invalid loan", func(t *testing.T) {
		contents := strings.Replace(uploadConfig, "principal: 500000", "principal: 0", 1)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "/api/forecast", contents, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec), "loan")
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := postJSON(t, h, "/api/forecast", compareBody)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		small := NewHandler(zap.NewNop(), Options{MaxUploadSize: 128})
		rec := httptest.NewRecorder()
		small.ServeHTTP(rec, uploadRequest(t, "/api/forecast", uploadConfig, nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestSolve(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})
	body := `{
  "loan": {"principal": 500000, "annualRate": 8, "termYears": 20, "startDate": "2025-01-15"},
  "extraPayments": {"mode": "monthly"},
  "optimize": {"field": "extraMonthlyAmount", "targetPayoffMonths": 120}
}`

	rec := postJSON(t, h, "/api/solve", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response solveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.InDelta(t, 1884.19, response.Solution.Value, 0.011)
	assert.True(t, response.Solution.Converged)
	assert.Equal(t, 120, response.Solution.PayoffMonth)
	assert.Equal(t, "monthly", response.ExtraPayments.Mode)
	assert.Equal(t, response.Solution.Value, response.ExtraPayments.ExtraMonthlyAmount)
	assert.Equal(t, 120, response.Summary.Extra.PayoffMonth)
	require.Len(t, response.Summary.Optimizations, 1)

	// The solved extra payments use the same keys a request does.
	var raw struct {
		ExtraPayments map[string]any `json:"extraPayments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "monthly", raw.ExtraPayments["mode"])
	assert.InDelta(t, 1884.19, raw.ExtraPayments["extraMonthlyAmount"], 0.011)
	assert.Equal(t, 1.0, raw.ExtraPayments["lumpSumYears"])
	assert.NotContains(t, raw.ExtraPayments, "Mode")
	assert.NotContains(t, raw.ExtraPayments, "ExtraMonthlyAmount")
}

func TestSolveRejectsBadRequests(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})
	loan := `"loan": {"principal": 500000, "annualRate": 8, "termYears": 20, "startDate": "2025-01-15"}`

	tests := map[string]string{
		"unsupported field": `{` + loan + `, "optimize": {"field": "termYears", "targetPayoffMonths": 120}}`,
		"missing target":    `{` + loan + `, "optimize": {"field": "extraMonthlyAmount"}}`,
		"invalid loan":      `{"loan": {"principal": 500000, "annualRate": 101, "termYears": 20, "startDate": "2025-01"}, "optimize": {"targetPayoffMonths": 10}}`,
		"invalid policy":    `{` + loan + `, "extraPayments": {"extraMonthlyAmount": -5}, "optimize": {"targetPayoffMonths": 10}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/solve", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestConfigExportOrdersSections(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})
	body := `{
  "zeta": 1,
  "scenarios": [{"name": "a", "active": true}],
  "alpha": true,
  "loan": {"principal": 1000},
  "logging": {"level": "debug"}
}`

	rec := postJSON(t, h, "/api/config/export", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	yamlText := payload["configYaml"]

	order := []string{"logging:", "loan:", "scenarios:", "alpha:", "zeta:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(yamlText, key)
		require.GreaterOrEqual(t, idx, 0, "missing %s in\n%s", key, yamlText)
		assert.Greater(t, idx, last, "%s out of order in\n%s", key, yamlText)
		last = idx
	}
	assert.Contains(t, yamlText, "principal: 1000")
}

func TestConfigExportInvalidJSON(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})
	rec := postJSON(t, h, "/api/config/export", "[1, 2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVersion(t *testing.T) {
	for version, expected := range map[string]string{"": "dev", " v1.2.3 ": "v1.2.3"} {
		h := NewHandler(zap.NewNop(), Options{Version: version})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, expected, payload["version"])
	}
}

func TestRequestIDPropagation(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.NotEqual(t, "abc-123", generated)
}

func TestRateLimitMiddleware(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{RateLimit: RateLimitConfig{Requests: 2, Window: time.Hour}})

	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1001").Code)

	limited := get("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "rate limit exceeded", decodeError(t, limited))
	assert.NotEmpty(t, limited.Header().Get(RequestIDHeader))

	assert.Equal(t, http.StatusOK, get("10.0.0.2:1000").Code)
}

func TestRateLimiterRefillAndCleanup(t *testing.T) {
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("a"))

	now = now.Add(2 * time.Hour)
	assert.True(t, limiter.Allow("b"))
	limiter.mu.Lock()
	_, stale := limiter.clients["a"]
	limiter.mu.Unlock()
	assert.False(t, stale, "idle bucket should be dropped")

	empty := NewRateLimiter(0, time.Minute)
	assert.False(t, empty.Allow("a"))
}

func TestNewHandlerFromConfig(t *testing.T) {
	results := cache.NewMemory(4)
	h := NewHandlerFromConfig(zap.NewNop(), nil, "v0.1.0", results)
	rec := postJSON(t, h, "/api/compare", compareBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, results.Len())

	rec = postJSON(t, h, "/api/compare", compareBody)
	var response compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Cached)
}
