package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/samvad-hq/gidipin-go/pkg/gidipin"
)

const (
	callbackPath    = "/callback"
	shutdownTimeout = 5 * time.Second
)

type callbackError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// CallbackHandler serves the redirect target of the consent page. The API
// redirects with ?code=&state= on approval and ?error=access_denied on denial.
func (s *Service) CallbackHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)
	return mux
}

func (s *Service) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, callbackError{Error: "method not allowed"})
		return
	}

	q := r.URL.Query()
	state := q.Get("state")

	if denial := q.Get("error"); denial != "" {
		if _, err := s.store.ConsumeState(state); err != nil {
			s.log.WarnObj("discarding denied sign-in state failed", "error", err.Error())
		}
		desc := q.Get("error_description")
		if desc == "" {
			desc = denial
		}
		s.log.InfoObj("sign-in denied", "signin_callback", map[string]any{"error": denial})
		writeJSON(w, http.StatusForbidden, callbackError{Error: desc, ErrorCode: denial})
		return
	}

	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, callbackError{Error: "authorization code is required", ErrorCode: gidipin.CodeMissingCode})
		return
	}

	raw, err := s.CompleteSignIn(r.Context(), code, state)
	if err != nil {
		status, body := callbackFailure(err)
		s.log.WarnObj("sign-in callback failed", "signin_callback", map[string]any{
			"status": status,
			"error":  err.Error(),
		})
		writeJSON(w, status, body)
		return
	}

	s.log.InfoObj("sign-in completed", "signin_callback", map[string]any{"status": http.StatusOK})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func callbackFailure(err error) (int, callbackError) {
	if errors.Is(err, ErrInvalidState) {
		return http.StatusBadRequest, callbackError{Error: err.Error(), ErrorCode: "INVALID_STATE"}
	}
	var apiErr *gidipin.Error
	if errors.As(err, &apiErr) {
		if apiErr.IsTransport() {
			return http.StatusBadGateway, callbackError{Error: apiErr.Message}
		}
		return http.StatusBadRequest, callbackError{Error: apiErr.Message, ErrorCode: apiErr.Code}
	}
	return http.StatusInternalServerError, callbackError{Error: "internal error"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the callback server on addr until ctx is cancelled.
func (s *Service) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Service) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.CallbackHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.log.InfoObj("callback server listening", "callback_server", map[string]any{
		"addr": ln.Addr().String(),
		"path": callbackPath,
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown callback server: %w", err)
		}
		s.log.InfoObj("callback server stopped", "reason", ctx.Err().Error())
		return nil
	}
}
