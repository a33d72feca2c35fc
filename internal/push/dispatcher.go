// Package push delivers notification payloads to mobile devices through FCM.
package push

import "context"

// maxTokensPerBatch is the FCM multicast limit per request.
const maxTokensPerBatch = 500

// Payload is the device-facing content of one notification.
type Payload struct {
	Title    string
	Body     string
	Data     map[string]string
	ImageURL string
}

// Result aggregates per-token outcomes across all batches of one send.
type Result struct {
	Delivered int
	Failed    int
	// Invalid holds tokens the provider rejected permanently
	// (unregistered or malformed). Callers should disable them.
	Invalid []string
}

// Dispatcher sends one payload to a set of device tokens.
type Dispatcher interface {
	Send(ctx context.Context, tokens []string, payload Payload) (*Result, error)
}

// NoopDispatcher drops every send. Used when push credentials are not configured.
type NoopDispatcher struct{}

// Send reports every token as delivered without contacting any provider.
func (NoopDispatcher) Send(_ context.Context, tokens []string, _ Payload) (*Result, error) {
	return &Result{Delivered: len(tokens)}, nil
}

// batches splits tokens into provider-sized chunks.
func batches(tokens []string) [][]string {
	var out [][]string
	for len(tokens) > 0 {
		n := len(tokens)
		if n > maxTokensPerBatch {
			n = maxTokensPerBatch
		}
		out = append(out, tokens[:n])
		tokens = tokens[n:]
	}
	return out
}
