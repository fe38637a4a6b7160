package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

func TestMetrics_RecordGatewayCall(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordGatewayCall(100*time.Millisecond, nil)
	m.RecordGatewayCall(200*time.Millisecond, siwferr.ErrGateway)
	m.RecordGatewayRetry()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.GatewayCallsTotal)
	assert.Equal(t, int64(1), snap.GatewayErrorsTotal)
	assert.Equal(t, int64(1), snap.GatewayRetriesTotal)
	assert.InDelta(t, 150.0, m.GatewayLatencyAvgMs(), 1.0)
}

func TestMetrics_GatewayLatencyNoCalls(t *testing.T) {
	t.Parallel()
	m := &Metrics{}
	assert.InDelta(t, 0.0, m.GatewayLatencyAvgMs(), 0.001)
}

func TestMetrics_RecordSign(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordSign("eth_signTypedData_v4", nil)
	m.RecordSign("personal_sign", siwferr.WithDetails(siwferr.ErrWalletRejected, map[string]string{"method": "personal_sign"}))
	m.RecordSign("eth_sign", siwferr.ErrUnsupportedMethod)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.SignRequestsTotal)
	assert.Equal(t, int64(1), snap.TypedDataSigns)
	assert.Equal(t, int64(1), snap.PersonalSigns)
	assert.Equal(t, int64(1), snap.SignRejections)
	assert.Equal(t, int64(1), snap.SignErrors)
}

func TestMetrics_RecordLogin(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordLoginStart()
	m.RecordLoginStart()
	m.RecordLoginStart()
	m.RecordLoginResult(nil)
	m.RecordLoginResult(siwferr.ErrLoginSuperseded)
	m.RecordLoginResult(siwferr.ErrSDKProtocol)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.LoginsStarted)
	assert.Equal(t, int64(1), snap.LoginsSucceeded)
	assert.Equal(t, int64(1), snap.LoginsSuperseded)
	assert.Equal(t, int64(1), snap.LoginsFailed)
}

func TestMetrics_Reset(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordGatewayCall(time.Millisecond, nil)
	m.RecordSign("personal_sign", nil)
	m.RecordLoginStart()
	m.Reset()

	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetrics_Concurrent(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordGatewayCall(time.Millisecond, nil)
			m.RecordSign("personal_sign", nil)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.GatewayCallsTotal)
	assert.Equal(t, int64(50), snap.SignRequestsTotal)
}
