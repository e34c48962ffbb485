// Package server exposes the Template Engine over HTTP: a thin surface
// calling straight through to resolve_command/list_templates/get_template,
// an admin reload endpoint, and the process's liveness/metrics probes. No
// auth, no sandbox dispatch — both are explicitly out of scope.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/luiscnext/secure-terminal-execution-server/internal/metrics"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/audit"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/config"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/paramtypes"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/registry"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/resolver"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
)

// Service adapts the core registry/resolver/audit/metrics components to the
// shape the HTTP handlers need, so handlers.go stays free of anything but
// request/response marshaling.
type Service struct {
	store               *registry.Store
	templatePath        string
	defaultSandboxImage string
	audit               *audit.Logger
	metrics             *metrics.Recorder
	logger              *slog.Logger
}

// NewService builds a Service over an already-populated Store.
// defaultSandboxImage is reapplied to the registry on every subsequent
// Reload, matching the default the initial load already applied via
// config.Load.
func NewService(store *registry.Store, templatePath, defaultSandboxImage string, auditLogger *audit.Logger, recorder *metrics.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:               store,
		templatePath:        templatePath,
		defaultSandboxImage: defaultSandboxImage,
		audit:               auditLogger,
		metrics:             recorder,
		logger:              logger,
	}
}

// Resolve runs resolve_command for templateName against params, emitting an
// audit record and a metrics observation regardless of outcome.
func (s *Service) Resolve(ctx context.Context, templateName string, params map[string]any) (string, paramtypes.Policy, error) {
	start := time.Now()
	command, policy, err := resolver.Resolve(s.store.Load(), templateName, params)
	duration := time.Since(start)

	if err != nil {
		s.audit.LogResolution(ctx, templateName, audit.OutcomeFailure, err)
		s.metrics.ObserveResolve(templateName, string(audit.OutcomeFailure), errorKind(err), duration)
		return "", paramtypes.Policy{}, err
	}

	s.audit.LogResolution(ctx, templateName, audit.OutcomeSuccess, nil)
	s.metrics.ObserveResolve(templateName, string(audit.OutcomeSuccess), "", duration)
	return command, policy, nil
}

// List returns templates in the current registry, optionally filtered by category.
func (s *Service) List(category string) []*paramtypes.TemplateDef {
	return s.store.Load().List(category)
}

// Get returns the named template, or a CommandNotFound error.
func (s *Service) Get(name string) (*paramtypes.TemplateDef, error) {
	return s.store.Load().Get(name)
}

// Reload re-reads the template document from disk and, on success, swaps it
// into the store atomically; in-flight Resolve calls are unaffected either way.
func (s *Service) Reload(ctx context.Context) error {
	reg, err := config.Load(s.templatePath, s.defaultSandboxImage)
	if err != nil {
		s.audit.LogReload(ctx, s.templatePath, 0, err)
		s.metrics.ObserveReload(false, 0)
		return err
	}

	s.store.Swap(reg)
	s.audit.LogReload(ctx, s.templatePath, reg.Len(), nil)
	s.metrics.ObserveReload(true, reg.Len())
	return nil
}

func errorKind(err error) string {
	if re, ok := err.(*runerrors.Error); ok {
		return re.Kind.String()
	}
	return ""
}
