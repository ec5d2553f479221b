package app

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/metercore/metercore/adapters/metrics"
	"github.com/metercore/metercore/domain/credential"
	"github.com/metercore/metercore/domain/pricing"
	"github.com/metercore/metercore/domain/usage"
	"github.com/metercore/metercore/ports"
)

// RequestContext carries the caller identity fields extracted at the HTTP
// boundary. Every field may be empty - a fully anonymous request is valid.
type RequestContext struct {
	CustomerID   string
	TeamID       string
	Organization string

	// APIKey is the raw credential. It is digested before anything is
	// stored and never leaves this package in plaintext.
	APIKey string

	RemoteAddr   string
	ForwardedFor string
	UserAgent    string
}

// ClientIP resolves the caller address, preferring the first forwarded-for
// hop over the direct peer address.
func (rc RequestContext) ClientIP() string {
	if rc.ForwardedFor != "" {
		first := rc.ForwardedFor
		if i := strings.IndexByte(first, ','); i >= 0 {
			first = first[:i]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(rc.RemoteAddr); err == nil {
		return host
	}
	return rc.RemoteAddr
}

// RecordParams describes one completed operation attempt.
type RecordParams struct {
	Operation   string
	Kind        string
	InputBytes  int64
	OutputBytes int64
	DurationMs  int64
	StatusCode  int
	Success     bool
	Error       string
	Detail      usage.Detail
}

// RecorderService builds, prices, and queues usage events. Record is
// fire-and-forget: no failure in here may ever reach the metered operation.
type RecorderService struct {
	writer  ports.UsageWriter
	store   ports.UsageStore // prior-count lookups for volume discounts; may be nil
	clock   ports.Clock
	idGen   ports.IDGenerator
	logger  zerolog.Logger
	metrics *metrics.Collector

	// pricing is hot-reloadable; swapped wholesale by UpdatePricing.
	pricing atomic.Pointer[pricing.Table]

	countTimeout time.Duration
}

// RecorderDeps contains dependencies for RecorderService.
type RecorderDeps struct {
	Writer  ports.UsageWriter
	Store   ports.UsageStore
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  zerolog.Logger
	Metrics *metrics.Collector

	// CountTimeout bounds the prior-count query for volume discounts.
	// Zero uses a 250ms default.
	CountTimeout time.Duration
}

// NewRecorderService creates a recorder with an initial pricing table.
func NewRecorderService(deps RecorderDeps, table pricing.Table) *RecorderService {
	if deps.CountTimeout <= 0 {
		deps.CountTimeout = 250 * time.Millisecond
	}
	s := &RecorderService{
		writer:       deps.Writer,
		store:        deps.Store,
		clock:        deps.Clock,
		idGen:        deps.IDGen,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		countTimeout: deps.CountTimeout,
	}
	s.pricing.Store(&table)
	return s
}

// UpdatePricing replaces the pricing table (config hot reload).
func (s *RecorderService) UpdatePricing(table pricing.Table) {
	s.pricing.Store(&table)
	s.logger.Info().Int("kinds", len(table.Rules)).Msg("pricing table updated")
}

// Record builds one usage event from a completed operation, prices it, and
// queues it for persistence. Panics and errors are contained here - the
// caller's operation already finished and must not be failed retroactively.
func (s *RecorderService) Record(rc RequestContext, p RecordParams) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ObserveRecordFailure()
			s.logger.Error().Interface("panic", r).Str("operation", p.Operation).Msg("usage recording panicked, suppressed")
		}
	}()

	now := s.clock.Now().UTC()

	event := usage.Event{
		ID:           s.idGen.New(),
		Timestamp:    now,
		CustomerID:   rc.CustomerID,
		TeamID:       rc.TeamID,
		Organization: rc.Organization,
		Operation:    p.Operation,
		Kind:         p.Kind,
		InputBytes:   p.InputBytes,
		OutputBytes:  p.OutputBytes,
		DurationMs:   p.DurationMs,
		StatusCode:   p.StatusCode,
		Success:      p.Success,
		Error:        p.Error,
		KeyDigest:    credential.Digest(rc.APIKey),
		IPAddress:    rc.ClientIP(),
		UserAgent:    rc.UserAgent,
		Detail:       p.Detail,
	}

	table := *s.pricing.Load()
	event = event.Priced(table.PriceWithVolume(event, s.priorCount(event, table, now)))

	s.metrics.ObserveEvent(event.Kind, event.Success, event.CostValue())
	s.writer.Write(event)
}

// priorCount fetches the caller's event count for this kind in the current
// month, used for volume discounts. Best-effort with a short timeout; -1
// (skip discounts) when the rule has no discounts or the lookup fails.
func (s *RecorderService) priorCount(e usage.Event, table pricing.Table, now time.Time) int64 {
	if s.store == nil || len(table.RuleFor(e.Kind).Discounts) == 0 {
		return -1
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.countTimeout)
	defer cancel()

	monthStart, _ := usage.MonthBounds(now)
	n, err := s.store.CountByKind(ctx, e.Partition(), e.Kind, monthStart)
	if err != nil {
		s.logger.Debug().Err(err).Str("kind", e.Kind).Msg("prior count lookup failed, skipping discount")
		return -1
	}
	return n
}
