// Package app provides application services that orchestrate domain logic.
package app

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/metercore/metercore/adapters/metrics"
	"github.com/metercore/metercore/domain/credential"
	"github.com/metercore/metercore/domain/ratelimit"
	"github.com/metercore/metercore/ports"
)

// AdmissionService decides whether a call may proceed. One instance per
// process, injected into every handler - no package-level state.
//
// Admission is synchronous and in-memory only; it never waits on I/O.
type AdmissionService struct {
	windows ports.WindowStore
	clock   ports.Clock
	logger  zerolog.Logger
	metrics *metrics.Collector

	// table is hot-reloadable; swapped wholesale by UpdateTable.
	table atomic.Pointer[ratelimit.Table]
}

// AdmissionDeps contains dependencies for AdmissionService.
type AdmissionDeps struct {
	Windows ports.WindowStore
	Clock   ports.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewAdmissionService creates an admission service with an initial policy table.
func NewAdmissionService(deps AdmissionDeps, table ratelimit.Table) *AdmissionService {
	s := &AdmissionService{
		windows: deps.Windows,
		clock:   deps.Clock,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
	s.table.Store(&table)
	return s
}

// UpdateTable replaces the policy table (config hot reload).
func (s *AdmissionService) UpdateTable(table ratelimit.Table) {
	s.table.Store(&table)
	s.logger.Info().Int("overrides", len(table.Overrides)).Msg("rate limit policy table updated")
}

// Admit decides whether a call holding rawKey may proceed, consuming one
// unit of quota on admission and nothing on rejection.
//
// An empty credential is always rejected without touching any window. An
// internal failure degrades to admit: quota enforcement is a support system,
// and availability wins over strictness.
func (s *AdmissionService) Admit(rawKey string) bool {
	if rawKey == "" {
		s.metrics.ObserveAdmission(false, "missing_credential")
		return false
	}

	digest := credential.Digest(rawKey)
	policy := s.table.Load().For(digest)

	decision, err := s.windows.Admit(digest, policy, s.clock.Now())
	if err != nil {
		s.logger.Error().Err(err).Str("credential", digest).Msg("admission check failed, admitting")
		s.metrics.ObserveAdmission(true, "internal_error")
		return true
	}

	s.metrics.ObserveAdmission(decision.Allowed, decision.Reason)

	if !decision.Allowed {
		s.logger.Info().
			Str("credential", digest).
			Str("reason", decision.Reason).
			Time("reset_at", decision.ResetAt).
			Msg("call rejected by rate limit")
		return false
	}

	return true
}

// Windows exposes the window store for observability (gauge scraping).
func (s *AdmissionService) Windows() ports.WindowStore {
	return s.windows
}
