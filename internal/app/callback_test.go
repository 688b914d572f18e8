package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samvad-hq/gidipin-go/pkg/gidipin"
	"github.com/samvad-hq/gidipin-go/pkg/publishers"
)

func getCallback(t *testing.T, h http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/callback?"+query, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCallbackError(t *testing.T, rec *httptest.ResponseRecorder) callbackError {
	t.Helper()
	var body callbackError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestCallbackCompletesSignIn(t *testing.T) {
	api := &fakeAPI{raw: json.RawMessage(`{"access_token":"tok","token_type":"Bearer"}`)}
	svc, _ := newTestService(t, api)
	start, err := svc.BeginSignIn(context.Background(), "080", SignInOptions{})
	if err != nil {
		t.Fatalf("BeginSignIn: %v", err)
	}

	rec := getCallback(t, svc.CallbackHandler(), "code=abc&state="+start.State)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != string(api.raw) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if len(api.codes) != 1 || api.codes[0] != "abc" {
		t.Fatalf("unexpected exchanged codes %#v", api.codes)
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{raw: json.RawMessage(`{}`)})

	rec := getCallback(t, svc.CallbackHandler(), "code=abc&state=forged")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeCallbackError(t, rec); body.ErrorCode != "INVALID_STATE" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestCallbackMissingCode(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{})

	rec := getCallback(t, svc.CallbackHandler(), "state=s1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeCallbackError(t, rec); body.ErrorCode != gidipin.CodeMissingCode {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestCallbackDeniedConsumesState(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{raw: json.RawMessage(`{}`)})
	start, err := svc.BeginSignIn(context.Background(), "080", SignInOptions{})
	if err != nil {
		t.Fatalf("BeginSignIn: %v", err)
	}

	rec := getCallback(t, svc.CallbackHandler(), "error=access_denied&error_description=User+denied+consent&state="+start.State)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeCallbackError(t, rec)
	if body.Error != "User denied consent" || body.ErrorCode != "access_denied" {
		t.Fatalf("unexpected body %#v", body)
	}
	if ok, _ := svc.store.ConsumeState(start.State); ok {
		t.Fatalf("denied state should be consumed")
	}
}

func TestCallbackMapsAPIErrors(t *testing.T) {
	api := &fakeAPI{raw: json.RawMessage(`{}`)}
	svc, events := newTestService(t, api)
	start, err := svc.BeginSignIn(context.Background(), "080", SignInOptions{})
	if err != nil {
		t.Fatalf("BeginSignIn: %v", err)
	}
	api.err = &gidipin.Error{Message: "Authorization code expired", Code: gidipin.CodeCodeExpired, StatusCode: 400}

	rec := getCallback(t, svc.CallbackHandler(), "code=old&state="+start.State)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeCallbackError(t, rec); body.ErrorCode != gidipin.CodeCodeExpired {
		t.Fatalf("unexpected body %#v", body)
	}
	if evt := events.last(t); evt.Type != publishers.EventSignInFailed || evt.ErrorCode != gidipin.CodeCodeExpired {
		t.Fatalf("unexpected event %#v", evt)
	}
}

func TestCallbackTransportErrorIsBadGateway(t *testing.T) {
	status, body := callbackFailure(&gidipin.Error{Message: "request failed: dial tcp", Err: context.DeadlineExceeded})
	if status != http.StatusBadGateway || body.ErrorCode != "" {
		t.Fatalf("unexpected mapping %d %#v", status, body)
	}
}

func TestCallbackRejectsPost(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{})
	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	rec := httptest.NewRecorder()
	svc.CallbackHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/callback?state=x")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
