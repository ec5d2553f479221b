package http

import (
	"encoding/json"
	"net/http"

	"github.com/metercore/metercore/app"
	"github.com/metercore/metercore/config"
	"github.com/metercore/metercore/domain/usage"
	"github.com/metercore/metercore/ports"
)

// Meter wraps an operation handler with the full admit -> serve -> record
// flow. The wrapped handler is opaque: this layer only measures it.
//
// A request with no credential is refused with 401, an over-budget request
// with 429, both before the handler runs. Whatever the handler does, one
// usage event is recorded after it returns.
type Meter struct {
	admission *app.AdmissionService
	recorder  *app.RecorderService
	clock     ports.Clock
	auth      config.AuthConfig
}

// NewMeter creates the metering middleware factory.
func NewMeter(admission *app.AdmissionService, recorder *app.RecorderService, clock ports.Clock, auth config.AuthConfig) *Meter {
	return &Meter{admission: admission, recorder: recorder, clock: clock, auth: auth}
}

// Operation wraps next as a metered operation with the given name and kind.
func (m *Meter) Operation(operation, kind string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := ExtractRequestContext(r, m.auth)

		if rc.APIKey == "" {
			writeError(w, http.StatusUnauthorized, "missing_api_key", "API key required")
			return
		}
		if !m.admission.Admit(rc.APIKey) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
			return
		}

		cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
		start := m.clock.Now()

		next.ServeHTTP(cw, r)

		durationMs := m.clock.Now().Sub(start).Milliseconds()

		// ContentLength is -1 for chunked bodies; record unknown as zero so
		// it never subtracts from aggregated byte totals.
		inputBytes := r.ContentLength
		if inputBytes < 0 {
			inputBytes = 0
		}

		m.recorder.Record(rc, app.RecordParams{
			Operation:   operation,
			Kind:        kind,
			InputBytes:  inputBytes,
			OutputBytes: cw.written,
			DurationMs:  durationMs,
			StatusCode:  cw.status,
			Success:     cw.status < 400,
			Detail:      usage.Detail{},
		})
	})
}

// countingWriter tracks status and bytes written by the wrapped handler.
type countingWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (w *countingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// Flush passes through so streaming handlers keep working when wrapped.
func (w *countingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
