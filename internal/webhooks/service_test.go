package webhooks

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"callout-engine/internal/accounts"
	"callout-engine/internal/callflow"
	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/contacts"
	"callout-engine/internal/participation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAuthToken = "super-secret-token"
	callbackPath  = "/webhooks/phone-call-events"
)

type webhookFixture struct {
	accounts *accounts.MemoryRepo
	contacts *contacts.MemoryRepo
	parts    *participation.MemoryRepo
	callouts *callout.MemoryRepo
	calls    *calls.MemoryRepo
	events   *calls.MemoryEventRepo
	svc      *Service
	router   *gin.Engine
	account  accounts.Account
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &webhookFixture{
		accounts: accounts.NewMemoryRepo(),
		contacts: contacts.NewMemoryRepo(),
		parts:    participation.NewMemoryRepo(),
		callouts: callout.NewMemoryRepo(),
		calls:    calls.NewMemoryRepo(),
		events:   calls.NewMemoryEventRepo(),
	}
	var err error
	f.account, err = f.accounts.Create(context.Background(), accounts.Account{
		PlatformAccountSID: "AC00000000000000000000000000000001",
		PlatformAuthToken:  testAuthToken,
	})
	require.NoError(t, err)

	f.svc = NewService(f.accounts, f.contacts, f.parts, f.callouts, f.calls, f.events, callflow.HelloWorldName, log)
	f.router = gin.New()
	f.router.POST(callbackPath, Handler(f.svc))
	return f
}

func defaultParams(overrides map[string]string) map[string]string {
	params := map[string]string{
		"CallSid":    "CA00000000000000000000000000000001",
		"AccountSid": "AC00000000000000000000000000000001",
		"From":       "+85510111111",
		"To":         "+85510999999",
		"Direction":  "inbound",
		"CallStatus": "ringing",
	}
	for k, v := range overrides {
		params[k] = v
	}
	return params
}

// post signs and delivers a callback the way the provider would.
func (f *webhookFixture) post(t *testing.T, params map[string]string, mutate func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, callbackPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(signatureHeader, ComputeSignature(testAuthToken, "http://"+req.Host+callbackPath, params))
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSignatureRoundTrip(t *testing.T) {
	params := map[string]string{"CallSid": "CA1", "From": "+855", "Zebra": "z", "Apple": "a"}
	sig := ComputeSignature("token", "https://example.com/hook", params)
	assert.True(t, ValidSignature("token", "https://example.com/hook", params, sig))
	assert.False(t, ValidSignature("other", "https://example.com/hook", params, sig))
	assert.False(t, ValidSignature("token", "https://example.com/other", params, sig))
	params["Extra"] = "x"
	assert.False(t, ValidSignature("token", "https://example.com/hook", params, sig))
}

func TestBadSignaturePersistsNothing(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, defaultParams(nil), func(r *http.Request) {
		r.Header.Set(signatureHeader, "bogus")
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Zero(t, f.events.Len())
	rows, err := f.calls.List(context.Background(), calls.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows, "an unauthenticated request leaves no trace")
}

func TestUnknownAccountForbidden(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, defaultParams(map[string]string{"AccountSid": "AC-nobody"}), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.events.Len())
}

func TestMissingParamsRenderXMLErrors(t *testing.T) {
	f := newWebhookFixture(t)

	params := defaultParams(nil)
	delete(params, "From")
	delete(params, "CallStatus")
	w := f.post(t, params, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<errors>")
	assert.Contains(t, body, "From is required")
	assert.Contains(t, body, "CallStatus is required")
	assert.Zero(t, f.events.Len())
}

func TestInboundCallCreatedOnTheFly(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, defaultParams(nil), nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "<Say>Hello World</Say>")
	assert.Contains(t, w.Body.String(), "<Hangup></Hangup>")
	assert.Empty(t, w.Header().Get("Location"))

	pc, err := f.calls.FindByRemoteCallID(context.Background(), "CA00000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, calls.DirectionInbound, pc.RemoteDirection)
	assert.Equal(t, calls.StatusRinging, pc.Status)

	contact, err := f.contacts.FindByMsisdn(context.Background(), f.account.ID, "+85510111111")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, pc.ContactID)
	assert.Equal(t, 1, f.events.Len())
}

func TestInboundReusesExistingContact(t *testing.T) {
	f := newWebhookFixture(t)
	existing, err := f.contacts.Create(context.Background(), contacts.Contact{
		AccountID: f.account.ID,
		Msisdn:    "+85510111111",
	})
	require.NoError(t, err)

	w := f.post(t, defaultParams(nil), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	pc, err := f.calls.FindByRemoteCallID(context.Background(), "CA00000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, pc.ContactID)
}

func TestUnknownOutboundCallNotFound(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, defaultParams(map[string]string{"Direction": "outbound-api"}), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "phone call not found")
	assert.Zero(t, f.events.Len())
}

func TestOutboundStatusCallbackUpdatesCall(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	co, err := f.callouts.Create(ctx, callout.Callout{
		AccountID:     f.account.ID,
		Status:        callout.StatusRunning,
		CallFlowLogic: callflow.HelloWorldName,
		LocationIDs:   []string{"loc-1"},
	})
	require.NoError(t, err)
	p, err := f.parts.Create(ctx, participation.CalloutParticipation{
		CalloutID: co.ID,
		ContactID: "contact-1",
		Msisdn:    "+85510222222",
	})
	require.NoError(t, err)
	pc, err := f.calls.Create(ctx, calls.PhoneCall{
		ParticipationID: p.ID,
		Msisdn:          p.Msisdn,
		Status:          calls.StatusRemotelyQueued,
		RemoteCallID:    "CA-out-1",
		RemoteDirection: calls.DirectionOutbound,
	})
	require.NoError(t, err)

	w := f.post(t, defaultParams(map[string]string{
		"CallSid":    "CA-out-1",
		"Direction":  "outbound-api",
		"CallStatus": "completed",
	}), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	pc, err = f.calls.Find(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, calls.StatusCompleted, pc.Status)
	assert.Equal(t, "completed", pc.RemoteStatus)

	history, err := f.events.ListByPhoneCall(ctx, pc.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "completed", history[0].Details["CallStatus"])
}

func TestTerminalStatusNeverRegresses(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.calls.Create(ctx, calls.PhoneCall{
		Msisdn:          "+85510333333",
		Status:          calls.StatusCompleted,
		RemoteCallID:    "CA-done",
		RemoteDirection: calls.DirectionOutbound,
	})
	require.NoError(t, err)

	// a late, out-of-order ringing event for a finished call
	w := f.post(t, defaultParams(map[string]string{
		"CallSid":    "CA-done",
		"Direction":  "outbound-api",
		"CallStatus": "ringing",
	}), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	pc, err := f.calls.FindByRemoteCallID(ctx, "CA-done")
	require.NoError(t, err)
	assert.Equal(t, calls.StatusCompleted, pc.Status)
	assert.Equal(t, "ringing", pc.RemoteStatus, "the raw remote status is still recorded")
	assert.Equal(t, 1, f.events.Len(), "the event itself is kept")
}

func TestJSONOnlyClientRejected(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, defaultParams(nil), func(r *http.Request) {
		r.Header.Set("Accept", "application/json")
	})

	assert.Equal(t, http.StatusNotAcceptable, w.Code)
	assert.Zero(t, f.events.Len())
}

func TestRepeatedEventIsIdempotentOnStatus(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	params := defaultParams(map[string]string{"CallStatus": "in-progress"})
	w := f.post(t, params, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.post(t, params, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	pc, err := f.calls.FindByRemoteCallID(ctx, params["CallSid"])
	require.NoError(t, err)
	assert.Equal(t, calls.StatusInProgress, pc.Status)

	rows, err := f.calls.List(ctx, calls.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "no duplicate call for a replayed CallSid")
	assert.Equal(t, 2, f.events.Len(), "each delivery is logged")
}
