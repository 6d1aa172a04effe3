package goember

import (
	"net/http"
	"testing"
	"time"
)

type recordingTransport struct{}

func (recordingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, nil
}

func TestCreateTransportDefaults(t *testing.T) {
	rt := newTransportFactory(&Config{}).createTransport()
	tr, ok := rt.(*http.Transport)
	assertTrueF(t, ok)
	assertEqualE(t, tr.MaxIdleConns, 10)
	assertEqualE(t, tr.MaxIdleConnsPerHost, 10)
	assertEqualE(t, tr.IdleConnTimeout, 30*time.Minute)
	assertTrueE(t, tr.DisableCompression, "bodies are decoded by the client")
	assertNotNilE(t, tr.Proxy)
}

func TestCreateTransportCustom(t *testing.T) {
	custom := recordingTransport{}
	rt := newTransportFactory(&Config{Transporter: custom}).createTransport()
	assertEqualE(t, rt, http.RoundTripper(custom))
}

func TestGetConfigDuration(t *testing.T) {
	assertEqualE(t, getConfigDuration(0, time.Second), time.Second)
	assertEqualE(t, getConfigDuration(5*time.Second, time.Second), 5*time.Second)
}
