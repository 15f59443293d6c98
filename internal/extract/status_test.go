package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/synthetic-monitor/internal/browser"
	"github.com/JakeFAU/synthetic-monitor/internal/browser/fake"
)

func TestStatusFromLog(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		entries []browser.LogEntry
		status  int
		found   bool
	}{
		{"empty", nil, 0, false},
		{"first html wins", []browser.LogEntry{
			fake.ResponseEntry("https://a/", 301, "text/html"),
			fake.ResponseEntry("https://a/home", 200, "text/html"),
		}, 301, true},
		{"non html skipped", []browser.LogEntry{
			fake.ResponseEntry("https://a/x.js", 500, "application/javascript"),
			fake.ResponseEntry("https://a/", 503, "text/html; charset=utf-8"),
		}, 503, true},
		{"other methods skipped", []browser.LogEntry{
			{Message: `{"message":{"method":"Network.requestWillBeSent","params":{"response":{"status":200,"headers":{"content-type":"text/html"}}}}}`},
		}, 0, false},
		{"header case ignored", []browser.LogEntry{
			{Message: `{"message":{"method":"Network.responseReceived","params":{"response":{"status":404,"headers":{"Content-Type":"text/html"}}}}}`},
		}, 404, true},
		{"garbage skipped", []browser.LogEntry{{Message: "nope"}, {Message: `{"message":5}`}}, 0, false},
	}

	for _, tc := range testCases {

		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, found := StatusFromLog(tc.entries)
			require.Equal(t, tc.found, found)
			require.Equal(t, tc.status, status)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]float64{200: 1, 204: 1, 299: 1, 400: 0, 404: 0, 500: 0, 599: 0} {
		up, ok := Classify(status)
		require.True(t, ok, "status %d", status)
		require.InDelta(t, want, up, 1e-9, "status %d", status)
	}
	for _, status := range []int{0, 100, 199, 300, 302, 399, 600, 999} {
		_, ok := Classify(status)
		require.False(t, ok, "status %d", status)
	}
}
