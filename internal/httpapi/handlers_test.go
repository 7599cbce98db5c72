package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callout-engine/internal/accounts"
	"callout-engine/internal/auth"
	"callout-engine/internal/batchops"
	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/config"
	"callout-engine/internal/contacts"
	"callout-engine/internal/participation"
	"callout-engine/internal/reporting"
	"callout-engine/internal/targeting"
	"callout-engine/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router  *gin.Engine
	manager *auth.Manager
	account accounts.Account
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	accountRepo := accounts.NewMemoryRepo()
	contactRepo := contacts.NewMemoryRepo()
	calloutRepo := callout.NewMemoryRepo()
	partRepo := participation.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	batchRepo := batchops.NewMemoryRepo()

	account, err := accountRepo.Create(context.Background(), accounts.Account{
		PlatformAccountSID: "AC1",
		PlatformAuthToken:  "token-1",
	})
	require.NoError(t, err)

	deps := batchops.Deps{
		Callouts:             calloutRepo,
		Contacts:             contactRepo,
		Participations:       partRepo,
		Calls:                callRepo,
		Targeting:            targeting.NewEngine(targeting.NewMemoryStore(partRepo, callRepo)),
		Dialer:               telephony.NewFakeClient(),
		Logger:               log,
		DefaultRetryStatuses: []calls.Status{calls.StatusFailed},
		DefaultMaxCalls:      3,
	}

	h := Handlers{
		Auth:           manager,
		Accounts:       accountRepo,
		Contacts:       contactRepo,
		Callouts:       callout.NewService(calloutRepo, partRepo, batchRepo),
		Participations: participation.NewService(partRepo, callRepo),
		BatchOps:       batchops.NewService(batchRepo, deps),
		Reporting:      reporting.NewService(calloutRepo, partRepo, callRepo),
	}

	r := gin.New()
	r.POST("/auth/token", h.IssueToken)
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(manager))
	{
		v1.POST("/contacts", h.CreateContact)
		v1.GET("/contacts/:contact_id", h.GetContact)
		v1.DELETE("/contacts/:contact_id", h.DeleteContact)
		v1.POST("/callouts", h.CreateCallout)
		v1.GET("/callouts", h.ListCallouts)
		v1.GET("/callouts/:callout_id", h.GetCallout)
		v1.DELETE("/callouts/:callout_id", h.DeleteCallout)
		v1.POST("/callouts/:callout_id/events", h.CalloutEvent)
		v1.GET("/callouts/:callout_id/calls_summary", h.CalloutCallsSummary)
		v1.POST("/callouts/:callout_id/participations", h.CreateParticipation)
		v1.POST("/callouts/:callout_id/batch_operations", h.CreateBatchOperation)
		v1.POST("/batch_operations/:batch_operation_id/events", h.BatchOperationEvent)
		v1.GET("/batch_operations/:batch_operation_id/preview", h.PreviewBatchOperation)
	}

	pair, err := manager.IssuePair(time.Now(), account.ID)
	require.NoError(t, err)

	return &apiFixture{router: r, manager: manager, account: account, token: pair.AccessToken}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validCalloutBody() map[string]any {
	return map[string]any{
		"voice": map[string]any{
			"url":          "https://cdn.example.com/announce.mp3",
			"content_type": "audio/mpeg",
			"byte_size":    2048,
		},
		"location_ids": []string{"loc-1"},
	}
}

func TestIssueTokenRejectsBadCredentials(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/auth/token", map[string]any{"account_sid": "AC1", "auth_token": "wrong"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/auth/token", map[string]any{"account_sid": "AC1", "auth_token": "token-1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[map[string]string](t, w)
	assert.NotEmpty(t, out["access_token"])
	assert.NotEmpty(t, out["refresh_token"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/v1/callouts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCalloutLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/callouts", validCalloutBody(), f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	co := decode[callout.Callout](t, w)
	assert.Equal(t, callout.StatusInitialized, co.Status)
	assert.Equal(t, f.account.ID, co.AccountID)

	// start
	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/events", map[string]any{"event": "start"}, f.token)
	require.Equal(t, http.StatusOK, w.Code)
	var evOut struct {
		Callout callout.Callout `json:"callout"`
		Applied bool            `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evOut))
	assert.True(t, evOut.Applied)
	assert.Equal(t, callout.StatusRunning, evOut.Callout.Status)

	// start again: inapplicable but not an error
	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/events", map[string]any{"event": "start"}, f.token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evOut))
	assert.False(t, evOut.Applied)
	assert.Equal(t, callout.StatusRunning, evOut.Callout.Status)

	// unknown event name is a validation failure
	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/events", map[string]any{"event": "explode"}, f.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCalloutValidationErrorsAre422(t *testing.T) {
	f := newAPIFixture(t)

	body := validCalloutBody()
	body["voice"] = map[string]any{"url": "https://cdn.example.com/announce.bin", "content_type": "application/octet-stream"}
	w := f.do(t, http.MethodPost, "/v1/callouts", body, f.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "voice")
}

func TestTenantIsolationHidesForeignCallouts(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/callouts", validCalloutBody(), f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	co := decode[callout.Callout](t, w)

	otherPair, err := f.manager.IssuePair(time.Now(), "some-other-account")
	require.NoError(t, err)

	w = f.do(t, http.MethodGet, "/v1/callouts/"+co.ID, nil, otherPair.AccessToken)
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign resources look absent, not forbidden")
}

func TestBatchOperationOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/contacts", map[string]any{"msisdn": "+85510111111", "location_ids": []string{"loc-1"}}, f.token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/v1/callouts", validCalloutBody(), f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	co := decode[callout.Callout](t, w)

	// unknown type rejected up front
	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/batch_operations", map[string]any{"type": "bulk_sms"}, f.token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/batch_operations", map[string]any{"type": "callout_population"}, f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	op := decode[batchops.BatchOperation](t, w)
	assert.Equal(t, batchops.StatusPreview, op.Status)

	// preview names the contact without enrolling it
	w = f.do(t, http.MethodGet, "/v1/batch_operations/"+op.ID+"/preview", nil, f.token)
	require.Equal(t, http.StatusOK, w.Code)
	sel := decode[batchops.Selection](t, w)
	assert.Len(t, sel.ContactIDs, 1)

	w = f.do(t, http.MethodPost, "/v1/batch_operations/"+op.ID+"/events", map[string]any{"event": "queue"}, f.token)
	require.Equal(t, http.StatusCreated, w.Code)

	// queue twice is a conflict
	w = f.do(t, http.MethodPost, "/v1/batch_operations/"+op.ID+"/events", map[string]any{"event": "queue"}, f.token)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestParticipationEnrollmentOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/contacts", map[string]any{"msisdn": "+85510111111"}, f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	contact := decode[contacts.Contact](t, w)

	w = f.do(t, http.MethodPost, "/v1/callouts", validCalloutBody(), f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	co := decode[callout.Callout](t, w)

	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/participations", map[string]any{"contact_id": contact.ID}, f.token)
	require.Equal(t, http.StatusCreated, w.Code)
	p := decode[participation.CalloutParticipation](t, w)
	assert.Equal(t, "+85510111111", p.Msisdn, "msisdn defaults from the contact")

	// duplicate enrollment is a conflict
	w = f.do(t, http.MethodPost, "/v1/callouts/"+co.ID+"/participations", map[string]any{"contact_id": contact.ID}, f.token)
	assert.Equal(t, http.StatusConflict, w.Code)

	// neither the callout nor the contact can be deleted while enrolled
	w = f.do(t, http.MethodDelete, "/v1/callouts/"+co.ID, nil, f.token)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = f.do(t, http.MethodDelete, "/v1/contacts/"+contact.ID, nil, f.token)
	assert.Equal(t, http.StatusConflict, w.Code)

	// calls summary reflects the enrollment
	w = f.do(t, http.MethodGet, "/v1/callouts/"+co.ID+"/calls_summary", nil, f.token)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[reporting.CallsSummary](t, w)
	assert.Equal(t, 1, summary.Participations)
	assert.Equal(t, 1, summary.ParticipationsRemaining)
}
