package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/loan-simulator/internal/cache"
	"github.com/iwvelando/loan-simulator/internal/config"
	"github.com/iwvelando/loan-simulator/internal/forecast"
	"github.com/iwvelando/loan-simulator/internal/optimizer"
	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/iwvelando/loan-simulator/pkg/loans"
	"github.com/iwvelando/loan-simulator/pkg/optimization"
	"github.com/iwvelando/loan-simulator/pkg/output"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const compareCacheNamespace = "compare"

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	results       cache.Cache
	cacheTTL      time.Duration
	limiter       *RateLimiter
}

// Options tunes the handler returned by NewHandler.
type Options struct {
	MaxUploadSize int64
	Version       string
	// Cache memoizes /api/compare responses; nil disables caching.
	Cache     cache.Cache
	CacheTTL  time.Duration
	RateLimit RateLimitConfig
}

// NewHandler constructs the HTTP handler that serves the comparison API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	results := opts.Cache
	if results == nil {
		results = cache.Nop{}
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		results:       results,
		cacheTTL:      opts.CacheTTL,
	}
	if opts.RateLimit.Requests > 0 {
		window := opts.RateLimit.Window
		if window <= 0 {
			window = constants.DefaultRateLimitWindow
		}
		h.limiter = NewRateLimiter(opts.RateLimit.Requests, window)
	}

	mux := http.NewServeMux()

	// Single-loan comparison from a JSON body
	mux.HandleFunc("/api/compare", h.handleCompare)

	// Every active scenario of an uploaded configuration file
	mux.HandleFunc("/api/forecast", h.handleForecast)

	// Goal seek for the extra payment that meets a payoff target
	mux.HandleFunc("/api/solve", h.handleSolve)

	// Config serialization endpoint for downloads
	mux.HandleFunc("/api/config/export", h.handleConfigExport)

	mux.HandleFunc("/api/version", h.handleVersion)

	return withRequestID(h.rateLimit(mux))
}

// NewHandlerFromConfig wires the upload limit, cache TTL and rate limit of cfg
// into a handler backed by results. The caller owns results and closes it once
// the server has stopped.
func NewHandlerFromConfig(logger *zap.Logger, cfg *Config, version string, results cache.Cache) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewHandler(logger, Options{
		MaxUploadSize: cfg.UploadSizeBytes(),
		Version:       version,
		Cache:         results,
		CacheTTL:      cfg.Cache.TTL,
		RateLimit:     cfg.RateLimit,
	})
}

type compareRequest struct {
	Loan          config.Loan          `json:"loan"`
	ExtraPayments config.ExtraPayments `json:"extraPayments"`
}

type compareResponse struct {
	Summary   output.ScenarioReport `json:"summary"`
	Rows      []output.ScheduleRow  `json:"rows"`
	Yearly    []output.YearRow      `json:"yearly"`
	CSV       string                `json:"csv"`
	YearlyCSV string                `json:"yearlyCsv"`
	Warnings  []string              `json:"warnings,omitempty"`
	Duration  string                `json:"duration"`
	Cached    bool                  `json:"cached"`
}

type forecastResponse struct {
	Scenarios  []string                `json:"scenarios"`
	Reports    []output.ScenarioReport `json:"reports"`
	CSV        string                  `json:"csv"`
	Warnings   []string                `json:"warnings,omitempty"`
	Duration   string                  `json:"duration"`
	ConfigYAML string                  `json:"configYaml,omitempty"`
}

type solveRequest struct {
	Loan          config.Loan            `json:"loan"`
	ExtraPayments config.ExtraPayments   `json:"extraPayments"`
	Optimize      config.OptimizerConfig `json:"optimize"`
}

type solveResponse struct {
	Solution      optimization.Summary  `json:"solution"`
	ExtraPayments config.ExtraPayments  `json:"extraPayments"`
	Summary       output.ScenarioReport `json:"summary"`
	Duration      string                `json:"duration"`
}

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCompare"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req compareRequest
	if status, err := h.decodeJSON(w, r, &req); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	canonical, err := json.Marshal(req)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode request: %v", err), op)
		return
	}
	key := cache.Key(compareCacheNamespace, canonical)

	if response, ok := h.cachedComparison(r.Context(), key); ok {
		response.Cached = true
		response.Duration = time.Since(start).String()
		h.logger.Debug("comparison served from cache",
			zap.String("op", op),
			zap.String("requestID", RequestID(r.Context())),
			zap.String("key", key),
		)
		h.writeJSON(w, http.StatusOK, response)
		return
	}

	conf := config.Configuration{
		Loan: req.Loan,
		Scenarios: []config.Scenario{{
			Name:          "extra payments",
			Active:        true,
			ExtraPayments: req.ExtraPayments,
		}},
	}
	if err := conf.Validate(); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	results, err := forecast.GetForecast(h.logger, conf)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), fmt.Sprintf("failed to compute comparison: %v", err), op)
		return
	}

	report := output.NewReport(results[0], true)
	rows, yearly := report.Schedule, report.Yearly
	report.Schedule, report.Yearly = nil, nil

	csvOutput, err := output.CsvString(results)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render csv: %v", err), op)
		return
	}
	yearlyCSV, err := output.YearlyCsvString(results)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render yearly csv: %v", err), op)
		return
	}

	response := compareResponse{
		Summary:   report,
		Rows:      rows,
		Yearly:    yearly,
		CSV:       csvOutput,
		YearlyCSV: yearlyCSV,
		Warnings:  append(conf.ValidateConfiguration(), report.Warnings...),
	}
	h.storeComparison(r.Context(), key, response)

	elapsed := time.Since(start)
	response.Duration = elapsed.String()

	h.logger.Info("comparison computed",
		zap.String("op", op),
		zap.String("requestID", RequestID(r.Context())),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

// cachedComparison treats any cache failure as a miss.
func (h *handler) cachedComparison(ctx context.Context, key string) (compareResponse, bool) {
	var response compareResponse
	data, ok, err := h.results.Get(ctx, key)
	if err != nil {
		h.logger.Warn("result cache lookup failed",
			zap.String("op", "server.cachedComparison"),
			zap.String("key", key),
			zap.Error(err),
		)
		return response, false
	}
	if !ok {
		return response, false
	}
	if err := json.Unmarshal(data, &response); err != nil {
		h.logger.Warn("discarding undecodable cache entry",
			zap.String("op", "server.cachedComparison"),
			zap.String("key", key),
			zap.Error(err),
		)
		return response, false
	}
	return response, true
}

func (h *handler) storeComparison(ctx context.Context, key string, response compareResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		h.logger.Warn("failed to encode cache entry",
			zap.String("op", "server.storeComparison"),
			zap.Error(err),
		)
		return
	}
	if err := h.results.Set(ctx, key, data, h.cacheTTL); err != nil {
		h.logger.Warn("result cache store failed",
			zap.String("op", "server.storeComparison"),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, "missing configuration file", op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to read configuration: %v", err), op)
		return
	}
	configBytes := buf.Bytes()

	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(configBytes))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	warnings := cfg.ValidateConfiguration()
	if err := cfg.Validate(); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	// Optimizer directives run unless the upload opts out with optimize=false.
	optimizationResult := &optimizer.Result{}
	if flag := r.FormValue("optimize"); flag == "" || coerceBool(flag) {
		runner, err := optimizer.NewRunner(h.logger, cfg)
		if err != nil {
			h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to initialize optimizer: %v", err), op)
			return
		}
		optimizationResult, err = runner.Run()
		if err != nil {
			h.respondErrorWithOp(w, statusForError(err), fmt.Sprintf("optimizer execution failed: %v", err), op)
			return
		}
	}

	results, err := forecast.GetForecast(h.logger, *cfg)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), fmt.Sprintf("failed to compute forecast: %v", err), op)
		return
	}

	if !optimizationResult.Empty() {
		optimizationResult.Apply(results)
		updatedBytes, err := yaml.Marshal(cfg)
		if err != nil {
			h.logger.Warn("failed to marshal optimized configuration",
				zap.String("op", op),
				zap.Error(err),
			)
		} else {
			configBytes = updatedBytes
		}
	}

	csvOutput, err := output.CsvString(results)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render csv: %v", err), op)
		return
	}

	elapsed := time.Since(start)
	response := forecastResponse{
		Scenarios:  extractScenarioNames(results),
		Reports:    output.NewReports(results, true),
		CSV:        csvOutput,
		Warnings:   warnings,
		Duration:   elapsed.String(),
		ConfigYAML: string(configBytes),
	}

	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.String("requestID", RequestID(r.Context())),
		zap.Int("scenarios", len(response.Scenarios)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSolve"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req solveRequest
	if status, err := h.decodeJSON(w, r, &req); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	terms, err := req.Loan.ToLoanTerms()
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("loan: %v", err), op)
		return
	}
	policy, err := req.ExtraPayments.ToPolicy()
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("extraPayments: %v", err), op)
		return
	}
	directive := req.Optimize
	if err := directive.Validate(); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	solution, err := optimizer.Solve(terms, policy, directive)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), fmt.Sprintf("optimizer execution failed: %v", err), op)
		return
	}

	result := forecast.Forecast{
		Name:          "solve",
		Summary:       solution.Comparison,
		Notes:         forecast.BuildNotes(solution.Comparison),
		Optimizations: []optimization.Summary{solution.Summary},
	}

	elapsed := time.Since(start)
	h.logger.Info("goal seek computed",
		zap.String("op", op),
		zap.String("requestID", RequestID(r.Context())),
		zap.String("field", solution.Summary.Field),
		zap.Float64("value", solution.Summary.Value),
		zap.Bool("converged", solution.Summary.Converged),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, solveResponse{
		Solution:      solution.Summary,
		ExtraPayments: config.FromPolicy(solution.Policy),
		Summary:       output.NewReport(result, false),
		Duration:      elapsed.String(),
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleConfigExport"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode configuration: %v", err), op)
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	yamlBytes, err := marshalOrderedConfigYAML(payload)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"configYaml": string(yamlBytes),
	})
}

// decodeJSON reads a size-limited JSON body that must not carry unknown
// fields. The returned status applies when err is non-nil.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request exceeds limit of %d bytes", h.maxUploadSize)
		}
		return http.StatusBadRequest, fmt.Errorf("failed to decode request: %v", err)
	}
	return http.StatusOK, nil
}

// marshalOrderedConfigYAML writes the known sections in file order and any
// others alphabetically after them.
func marshalOrderedConfigYAML(payload map[string]interface{}) ([]byte, error) {
	items := make([]orderedItem, 0, len(payload))
	seen := make(map[string]struct{})

	for _, key := range []string{"logging", "output", "loan", "scenarios"} {
		if value, ok := payload[key]; ok {
			items = append(items, orderedItem{key: key, value: value})
			seen[key] = struct{}{}
		}
	}

	remainingKeys := make([]string, 0, len(payload))
	for key := range payload {
		if _, already := seen[key]; already {
			continue
		}
		remainingKeys = append(remainingKeys, key)
	}
	sort.Strings(remainingKeys)
	for _, key := range remainingKeys {
		items = append(items, orderedItem{key: key, value: payload[key]})
	}

	return yaml.Marshal(orderedConfig{items: items})
}

type orderedConfig struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedConfig) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}

// statusForError maps rejected input to 400 and anything else to 500.
func statusForError(err error) int {
	if errors.Is(err, loans.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func extractScenarioNames(results []forecast.Forecast) []string {
	names := make([]string, 0, len(results))
	for _, scenario := range results {
		names = append(names, scenario.Name)
	}
	return names
}

// coerceBool interprets a form or query flag; anything unparsable is false.
func coerceBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}
