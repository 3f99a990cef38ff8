package diagstream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/dispatch/pkg/diagnostic"
	"github.com/janus-lang/dispatch/pkg/signature"
)

func sampleDiagnostic() diagnostic.Diagnostic {
	return diagnostic.Diagnostic{
		Code:     "S1101",
		Severity: diagnostic.SeverityError,
		Span:     signature.Span{File: "main.janus", StartLine: 3, StartCol: 1},
		Human: diagnostic.HumanMessage{
			Summary: "ambiguous call to \"speak\": 2 equally specific candidates",
		},
	}
}

func TestPublishIncrementsCount(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	require.NoError(t, hub.Publish(sampleDiagnostic()))
	require.NoError(t, hub.Publish(sampleDiagnostic()))

	assert.Eventually(t, func() bool { return hub.PublishedCount() == 2 }, time.Second, time.Millisecond)
}

func TestServeHTTPDeliversDiagnostic(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, hub.Publish(sampleDiagnostic()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "S1101")
}
