// Package elevenlabs holds the connection and cost math for the
// conversational voice vendor.
package elevenlabs

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	// conversationEndpoint is the vendor's conversational websocket.
	conversationEndpoint = "wss://api.elevenlabs.io/v1/convai/conversation"

	// costPerThousandChars is the approximate conversational price in USD.
	costPerThousandChars = 0.30

	// charsPerMinute approximates speech density for usage estimates.
	charsPerMinute = 750
)

// Config identifies the vendor agent to relay to.
type Config struct {
	APIKey  string
	AgentID string
}

// Configured reports whether the relay has credentials to work with.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.AgentID) != ""
}

// ConnectionURL is the websocket URL for this agent.
func (c Config) ConnectionURL() string {
	return conversationEndpoint + "?agent_id=" + url.QueryEscape(c.AgentID)
}

// AuthHeader returns the dial headers carrying the API key.
func (c Config) AuthHeader() http.Header {
	h := http.Header{}
	h.Set("xi-api-key", c.APIKey)
	return h
}

// EstimateCostUSD approximates the spend for a character count.
func EstimateCostUSD(chars int) float64 {
	return float64(chars) / 1000 * costPerThousandChars
}

// EstimateMinutes approximates spoken minutes for a character count.
func EstimateMinutes(chars int) float64 {
	return float64(chars) / charsPerMinute
}
