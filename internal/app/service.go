package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samvad-hq/gidipin-go/internal/config"
	"github.com/samvad-hq/gidipin-go/internal/logger"
	"github.com/samvad-hq/gidipin-go/internal/storage"
	"github.com/samvad-hq/gidipin-go/pkg/gidipin"
	"github.com/samvad-hq/gidipin-go/pkg/publishers"
)

// ErrInvalidState is returned when a callback carries a state this process did
// not issue, already consumed, or issued too long ago.
var ErrInvalidState = errors.New("sign-in state is unknown or expired")

// API is the subset of gidipin.Client used by the service.
type API interface {
	Verify(ctx context.Context, pin string) (json.RawMessage, error)
	GetProfessional(ctx context.Context, pin string) (json.RawMessage, error)
	InitiateSignIn(ctx context.Context, req gidipin.SignInRequest) (json.RawMessage, error)
	ExchangeCode(ctx context.Context, code string) (json.RawMessage, error)
}

// EventPublisher publishes integration events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Service runs the GidiPIN operations on behalf of the CLI and the callback
// server. It owns the sign-in state store and reports every outcome to the
// configured event sinks.
type Service struct {
	api         API
	store       storage.Store
	events      EventPublisher
	closeEvents func() error
	log         logger.Logger
	redirectURI string
	scopes      []string
	newID       func() string
}

// Options wires a Service from already-built parts.
type Options struct {
	API         API
	Store       storage.Store
	Events      EventPublisher
	Logger      logger.Logger
	RedirectURI string
	Scopes      []string
}

// NewService builds a service from explicit parts.
func NewService(opts Options) (*Service, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("api client must not be nil")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("state store must not be nil")
	}
	log := opts.Logger
	if log == nil {
		log = &logger.NopLogger{}
	}

	return &Service{
		api:         opts.API,
		store:       opts.Store,
		events:      opts.Events,
		log:         log,
		redirectURI: strings.TrimSpace(opts.RedirectURI),
		scopes:      append([]string(nil), opts.Scopes...),
		newID:       uuid.NewString,
	}, nil
}

// NewServiceFromConfig builds the SDK client, state store and publishers described by cfg.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required (set GIDIPIN_API_KEY or --api-key)")
	}

	client := gidipin.New(cfg.APIKey,
		gidipin.WithBaseURL(cfg.BaseURL),
		gidipin.WithTimeout(cfg.RequestTimeout),
		gidipin.WithLogger(log),
	)

	store, err := storage.NewStore(cfg.StateStoreType, cfg.BBoltPath, storage.Options{
		StateTTL:        cfg.StateTTL,
		CleanupInterval: cfg.StateCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.DebugObj("state store initialized", "storage_config", map[string]any{
		"type":                     cfg.StateStoreType,
		"path":                     cfg.BBoltPath,
		"state_ttl_seconds":        int(cfg.StateTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StateCleanupInterval.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc, err := NewService(Options{
		API:         client,
		Store:       store,
		Events:      fanout,
		Logger:      log,
		RedirectURI: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
	})
	if err != nil {
		store.Close()
		fanout.Close()
		return nil, err
	}
	svc.closeEvents = fanout.Close
	return svc, nil
}

// buildFanout loads the publishers file; an empty path disables publishing.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return publishers.NewFanout(nil), nil
	}

	fileCfg, err := publishers.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	enabled := fileCfg.Enabled()

	fanout, err := publishers.DefaultBuilders().Build(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]any, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]any{
			"id":     pubCfg.ID,
			"type":   pubCfg.Type,
			"events": pubCfg.Events,
		})
	}
	log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return fanout, nil
}

// Close releases the state store and publisher connections.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.closeEvents != nil {
		if err := s.closeEvents(); err != nil {
			errs = append(errs, fmt.Errorf("close publishers: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Verify checks a PIN and reports the outcome.
func (s *Service) Verify(ctx context.Context, pin string) (json.RawMessage, error) {
	raw, err := s.api.Verify(ctx, pin)
	if err != nil {
		s.emit(ctx, s.failureEvent(publishers.EventPINVerifyFailed, pin, err))
		return nil, err
	}

	evt := s.event(publishers.EventPINVerified, pin)
	if res, derr := gidipin.Decode[gidipin.VerifyResult](raw); derr == nil {
		evt.RequestID = res.Meta.RequestID
		if res.Professional != nil {
			evt.Professional = res.Professional.Name
		}
		if !res.Verified {
			evt.Type = publishers.EventPINVerifyFailed
			evt = evt.WithFailure("", "PIN not verified")
		}
	}
	s.emit(ctx, evt)
	return raw, nil
}

// Professional fetches the public details behind a PIN.
func (s *Service) Professional(ctx context.Context, pin string) (json.RawMessage, error) {
	raw, err := s.api.GetProfessional(ctx, pin)
	if err != nil {
		s.emit(ctx, s.failureEvent(publishers.EventProfessionalFetched, pin, err))
		return nil, err
	}

	evt := s.event(publishers.EventProfessionalFetched, pin)
	if profile, derr := gidipin.Decode[gidipin.ProfessionalProfile](raw); derr == nil {
		evt.RequestID = profile.Meta.RequestID
	}
	s.emit(ctx, evt)
	return raw, nil
}

// SignInOptions overrides the configured defaults for one sign-in.
type SignInOptions struct {
	RedirectURI string
	Scopes      []string
	// State is generated when empty.
	State string
}

// SignInStart is the result of BeginSignIn.
type SignInStart struct {
	State    string
	Response json.RawMessage
}

// BeginSignIn records a fresh state and asks the API to start an Instant Sign-In.
func (s *Service) BeginSignIn(ctx context.Context, pin string, opts SignInOptions) (SignInStart, error) {
	redirectURI := strings.TrimSpace(opts.RedirectURI)
	if redirectURI == "" {
		redirectURI = s.redirectURI
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = s.scopes
	}
	state := strings.TrimSpace(opts.State)
	if state == "" {
		state = s.newID()
	}

	if err := s.store.PutState(state); err != nil {
		return SignInStart{}, fmt.Errorf("record sign-in state: %w", err)
	}

	raw, err := s.api.InitiateSignIn(ctx, gidipin.SignInRequest{
		PIN:         pin,
		RedirectURI: redirectURI,
		State:       state,
		Scopes:      scopes,
	})
	if err != nil {
		if _, cerr := s.store.ConsumeState(state); cerr != nil {
			s.log.WarnObj("discarding sign-in state failed", "error", cerr.Error())
		}
		s.emit(ctx, s.failureEvent(publishers.EventSignInInitiated, pin, err))
		return SignInStart{}, err
	}

	evt := s.event(publishers.EventSignInInitiated, pin)
	evt.Scopes = scopes
	if init, derr := gidipin.Decode[gidipin.SignInInitiation](raw); derr == nil {
		evt.RequestID = init.Meta.RequestID
		evt.Professional = init.Professional.Name
	}
	s.emit(ctx, evt)

	return SignInStart{State: state, Response: raw}, nil
}

// CompleteSignIn validates the callback state and exchanges the authorization code.
func (s *Service) CompleteSignIn(ctx context.Context, code, state string) (json.RawMessage, error) {
	ok, err := s.store.ConsumeState(state)
	if err != nil {
		return nil, fmt.Errorf("check sign-in state: %w", err)
	}
	if !ok {
		s.emit(ctx, s.event(publishers.EventSignInFailed, "").WithFailure("INVALID_STATE", ErrInvalidState.Error()))
		return nil, ErrInvalidState
	}

	return s.Exchange(ctx, code)
}

// Exchange swaps an authorization code for an access token without checking
// state. Callers that issued the state themselves use CompleteSignIn.
func (s *Service) Exchange(ctx context.Context, code string) (json.RawMessage, error) {
	raw, err := s.api.ExchangeCode(ctx, code)
	if err != nil {
		s.emit(ctx, s.failureEvent(publishers.EventSignInFailed, "", err))
		return nil, err
	}

	evt := s.event(publishers.EventSignInCompleted, "")
	if grant, derr := gidipin.Decode[gidipin.TokenGrant](raw); derr == nil {
		evt.PIN = grant.Professional.PIN
		evt.Professional = grant.Professional.Name
		evt.Scopes = grant.Scopes
		evt.RequestID = grant.Meta.RequestID
	}
	s.emit(ctx, evt)
	return raw, nil
}

func (s *Service) event(typ, pin string) publishers.Event {
	return publishers.NewEvent(s.newID(), typ, pin)
}

func (s *Service) failureEvent(typ, pin string, err error) publishers.Event {
	var apiErr *gidipin.Error
	if errors.As(err, &apiErr) {
		return s.event(typ, pin).WithFailure(apiErr.Code, apiErr.Message)
	}
	return s.event(typ, pin).WithFailure("", err.Error())
}

// emit never fails the caller: sink errors are logged.
func (s *Service) emit(ctx context.Context, evt publishers.Event) {
	if s.events == nil {
		return
	}
	delivered, err := s.events.Publish(ctx, evt)
	if err != nil {
		s.log.ErrorObj("event publish failed", "event_error", map[string]any{
			"event_id":   evt.ID,
			"event_type": evt.Type,
			"delivered":  delivered,
			"error":      err.Error(),
		})
		return
	}
	s.log.DebugObj("event published", "event_meta", map[string]any{
		"event_id":   evt.ID,
		"event_type": evt.Type,
		"outcome":    evt.Outcome,
		"delivered":  delivered,
	})
}
