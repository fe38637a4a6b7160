// Package metrics provides in-process counters for the login bridge.
// Counters are atomic so the signer, gateway and orchestrator can record
// from any goroutine.
package metrics

import (
	"sync/atomic"
	"time"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Gateway metrics
	gatewayCallsTotal   atomic.Int64
	gatewayErrorsTotal  atomic.Int64
	gatewayRetriesTotal atomic.Int64
	gatewayLatencyNanos atomic.Int64

	// Signing metrics
	signRequestsTotal atomic.Int64
	signRejections    atomic.Int64
	signErrors        atomic.Int64
	typedDataSigns    atomic.Int64
	personalSigns     atomic.Int64

	// Login metrics
	loginsStarted    atomic.Int64
	loginsSucceeded  atomic.Int64
	loginsFailed     atomic.Int64
	loginsSuperseded atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordGatewayCall records a gateway call with its duration and outcome.
func (m *Metrics) RecordGatewayCall(duration time.Duration, err error) {
	m.gatewayCallsTotal.Add(1)
	m.gatewayLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.gatewayErrorsTotal.Add(1)
	}
}

// RecordGatewayRetry records one retried gateway attempt.
func (m *Metrics) RecordGatewayRetry() {
	m.gatewayRetriesTotal.Add(1)
}

// RecordSign records a signing request. Declined prompts count as
// rejections rather than errors.
func (m *Metrics) RecordSign(method string, err error) {
	m.signRequestsTotal.Add(1)

	switch method {
	case "eth_signTypedData_v4":
		m.typedDataSigns.Add(1)
	case "personal_sign":
		m.personalSigns.Add(1)
	}

	switch {
	case err == nil:
	case siwferr.Is(err, siwferr.ErrWalletRejected):
		m.signRejections.Add(1)
	default:
		m.signErrors.Add(1)
	}
}

// RecordLoginStart records a login attempt entering the SDK.
func (m *Metrics) RecordLoginStart() {
	m.loginsStarted.Add(1)
}

// RecordLoginResult records how a login attempt ended.
func (m *Metrics) RecordLoginResult(err error) {
	switch {
	case err == nil:
		m.loginsSucceeded.Add(1)
	case siwferr.Is(err, siwferr.ErrLoginSuperseded):
		m.loginsSuperseded.Add(1)
	default:
		m.loginsFailed.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	GatewayCallsTotal   int64 `json:"gateway_calls_total"`
	GatewayErrorsTotal  int64 `json:"gateway_errors_total"`
	GatewayRetriesTotal int64 `json:"gateway_retries_total"`
	GatewayLatencyNanos int64 `json:"gateway_latency_nanos"`
	SignRequestsTotal   int64 `json:"sign_requests_total"`
	SignRejections      int64 `json:"sign_rejections"`
	SignErrors          int64 `json:"sign_errors"`
	TypedDataSigns      int64 `json:"typed_data_signs"`
	PersonalSigns       int64 `json:"personal_signs"`
	LoginsStarted       int64 `json:"logins_started"`
	LoginsSucceeded     int64 `json:"logins_succeeded"`
	LoginsFailed        int64 `json:"logins_failed"`
	LoginsSuperseded    int64 `json:"logins_superseded"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		GatewayCallsTotal:   m.gatewayCallsTotal.Load(),
		GatewayErrorsTotal:  m.gatewayErrorsTotal.Load(),
		GatewayRetriesTotal: m.gatewayRetriesTotal.Load(),
		GatewayLatencyNanos: m.gatewayLatencyNanos.Load(),
		SignRequestsTotal:   m.signRequestsTotal.Load(),
		SignRejections:      m.signRejections.Load(),
		SignErrors:          m.signErrors.Load(),
		TypedDataSigns:      m.typedDataSigns.Load(),
		PersonalSigns:       m.personalSigns.Load(),
		LoginsStarted:       m.loginsStarted.Load(),
		LoginsSucceeded:     m.loginsSucceeded.Load(),
		LoginsFailed:        m.loginsFailed.Load(),
		LoginsSuperseded:    m.loginsSuperseded.Load(),
	}
}

// GatewayLatencyAvgMs returns the average gateway latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) GatewayLatencyAvgMs() float64 {
	calls := m.gatewayCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.gatewayLatencyNanos.Load()) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
func (m *Metrics) Reset() {
	m.gatewayCallsTotal.Store(0)
	m.gatewayErrorsTotal.Store(0)
	m.gatewayRetriesTotal.Store(0)
	m.gatewayLatencyNanos.Store(0)
	m.signRequestsTotal.Store(0)
	m.signRejections.Store(0)
	m.signErrors.Store(0)
	m.typedDataSigns.Store(0)
	m.personalSigns.Store(0)
	m.loginsStarted.Store(0)
	m.loginsSucceeded.Store(0)
	m.loginsFailed.Store(0)
	m.loginsSuperseded.Store(0)
}
