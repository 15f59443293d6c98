package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/synthetic-monitor/internal/browser"
)

const responseReceived = "Network.responseReceived"

type logMessage struct {
	Message struct {
		Method string `json:"method"`
		Params struct {
			Response struct {
				Status  float64        `json:"status"`
				Headers map[string]any `json:"headers"`
			} `json:"response"`
		} `json:"params"`
	} `json:"message"`
}

// StatusFromLog returns the status of the first response-received entry whose
// content type is HTML. Entries that cannot be decoded are skipped.
func StatusFromLog(entries []browser.LogEntry) (int, bool) {
	for _, entry := range entries {
		if entry.Message == "" {
			continue
		}
		var msg logMessage
		if err := json.Unmarshal([]byte(entry.Message), &msg); err != nil {
			continue
		}
		if msg.Message.Method != responseReceived {
			continue
		}
		resp := msg.Message.Params.Response
		if !strings.Contains(headerValue(resp.Headers, "content-type"), "text/html") {
			continue
		}
		if resp.Status <= 0 {
			continue
		}
		return int(resp.Status), true
	}
	return 0, false
}

func headerValue(headers map[string]any, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Classify maps a status code onto the "up" data point: 1 for 2xx, 0 for 4xx
// and 5xx. Any other status is unknown and yields ok == false.
func Classify(status int) (up float64, ok bool) {
	switch {
	case status >= 200 && status < 300:
		return 1, true
	case status >= 400 && status < 600:
		return 0, true
	default:
		return 0, false
	}
}
