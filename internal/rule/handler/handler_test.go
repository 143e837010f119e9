package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "fraudwatch/internal/jwt_token"
	"fraudwatch/internal/platform/middleware"
	"fraudwatch/internal/rule/cache"
	"fraudwatch/internal/rule/service"
	"fraudwatch/internal/rule/store"
)

var testJWT = jwttoken.NewJWTService("test-signing-key", "fraudwatch", "fraudwatch-api")

func newRuleRouter(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewInMemory()
	c, err := cache.New(st)
	require.NoError(t, err)
	svc, err := service.New(st, c, c)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger, jwttoken.NewJWTServiceAdapter(testJWT))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := testJWT.GenerateAccessToken("ops@example.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func rulePayload(name string) map[string]any {
	return map[string]any{
		"name":            name,
		"rule_type":       "AMOUNT_THRESHOLD",
		"condition":       "GREATER_THAN",
		"action_type":     "REJECT",
		"action_message":  "Amount exceeds maximum limit",
		"priority":        1,
		"threshold_value": "2000",
	}
}

func TestAuthRequired(t *testing.T) {
	router := newRuleRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/rules/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMutationsRequireAdminRole(t *testing.T) {
	router := newRuleRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/rules/", token(t, middleware.RoleAnalyst), rulePayload("R1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reads are open to analysts.
	rec = doJSON(t, router, http.MethodGet, "/api/rules/", token(t, middleware.RoleAnalyst), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndFetchRule(t *testing.T) {
	router := newRuleRouter(t)
	admin := token(t, middleware.RoleAdmin)

	rec := doJSON(t, router, http.MethodPost, "/api/rules/", admin, rulePayload("HIGH_AMOUNT"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive, "rules default to active")
	require.NotNil(t, created.ThresholdValue)
	assert.Equal(t, "2000", *created.ThresholdValue)

	rec = doJSON(t, router, http.MethodGet, "/api/rules/"+created.ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "HIGH_AMOUNT", fetched.Name)
}

func TestCreateValidation(t *testing.T) {
	router := newRuleRouter(t)
	admin := token(t, middleware.RoleAdmin)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr string
	}{
		{"missing name", func(p map[string]any) { delete(p, "name") }, "name is required"},
		{"unknown rule type", func(p map[string]any) { p["rule_type"] = "VELOCITY" }, "unknown rule type"},
		{"unknown action", func(p map[string]any) { p["action_type"] = "ESCALATE" }, "unknown action type"},
		{"bad threshold", func(p map[string]any) { p["threshold_value"] = "lots" }, "not a valid decimal"},
		{"missing condition", func(p map[string]any) { delete(p, "condition") }, "condition is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := rulePayload("R_" + tt.name)
			tt.mutate(payload)
			rec := doJSON(t, router, http.MethodPost, "/api/rules/", admin, payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
		})
	}
}

func TestDuplicateNameReturnsConflict(t *testing.T) {
	router := newRuleRouter(t)
	admin := token(t, middleware.RoleAdmin)

	rec := doJSON(t, router, http.MethodPost, "/api/rules/", admin, rulePayload("HIGH_AMOUNT"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/rules/", admin, rulePayload("HIGH_AMOUNT"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateDeleteToggle(t *testing.T) {
	router := newRuleRouter(t)
	admin := token(t, middleware.RoleAdmin)

	rec := doJSON(t, router, http.MethodPost, "/api/rules/", admin, rulePayload("HIGH_AMOUNT"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	update := rulePayload("HIGH_AMOUNT")
	update["priority"] = 7
	rec = doJSON(t, router, http.MethodPut, "/api/rules/"+created.ID, admin, update)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, 7, updated.Priority)

	rec = doJSON(t, router, http.MethodPatch, "/api/rules/"+created.ID+"/toggle", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&toggled))
	assert.False(t, toggled.IsActive)

	rec = doJSON(t, router, http.MethodDelete, "/api/rules/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/rules/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveViewsAndStats(t *testing.T) {
	router := newRuleRouter(t)
	admin := token(t, middleware.RoleAdmin)

	rec := doJSON(t, router, http.MethodPost, "/api/rules/", admin, rulePayload("HIGH_AMOUNT"))
	require.Equal(t, http.StatusCreated, rec.Code)

	ipRule := map[string]any{
		"name":           "BLOCKED_SUBNET",
		"rule_type":      "IP_BLACKLIST",
		"condition":      "STARTS_WITH",
		"action_type":    "REJECT",
		"action_message": "IP address is blocked",
		"priority":       2,
		"string_value":   "192.0.0.",
	}
	rec = doJSON(t, router, http.MethodPost, "/api/rules/", admin, ipRule)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/rules/active", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&active))
	assert.Len(t, active, 2)

	rec = doJSON(t, router, http.MethodGet, "/api/rules/active/type/IP_BLACKLIST", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byType []RuleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&byType))
	require.Len(t, byType, 1)
	assert.Equal(t, "BLOCKED_SUBNET", byType[0].Name)

	rec = doJSON(t, router, http.MethodGet, "/api/rules/active/type/UNKNOWN", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/rules/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 2, stats.ActiveRules)
	assert.Equal(t, 2, stats.TotalRules)
}

func TestClearCacheEndpoint(t *testing.T) {
	router := newRuleRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/rules/cache/clear", token(t, middleware.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListPaging(t *testing.T) {
	router := newRuleRouter(t)
	admin := token(t, middleware.RoleAdmin)

	for _, name := range []string{"R1", "R2", "R3"} {
		rec := doJSON(t, router, http.MethodPost, "/api/rules/", admin, rulePayload(name))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/rules/?page=1&size=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Rules, 1)
}
