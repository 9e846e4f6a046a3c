// Package transport delivers rendered event batches to the collector.
//
// Every request carries the application key and an HMAC-SHA512 signature of
// the body as query parameters. Calls return immediately; the result arrives
// later on a channel that receives exactly one Outcome.
package transport

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the production collector.
const DefaultEndpoint = "https://tracker.iqugroup.com/v3/batch"

// SDKType and SDKVersion are sent as request headers.
const (
	SDKType    = "Go"
	SDKVersion = "1.0.0"
)

// DefaultSimulationDelay is how long the simulation modes wait before
// reporting.
const DefaultSimulationDelay = 2 * time.Second

const maxResponseBytes = 1 << 20

// Mode selects between real network traffic and the simulations.
type Mode int

const (
	Live Mode = iota
	SimulateServer
	SimulateOffline
)

func (m Mode) String() string {
	switch m {
	case SimulateServer:
		return "simulate_server"
	case SimulateOffline:
		return "simulate_offline"
	}
	return "none"
}

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return Live, nil
	case "simulate_server":
		return SimulateServer, nil
	case "simulate_offline":
		return SimulateOffline, nil
	}
	return Live, fmt.Errorf("unknown test mode %q", s)
}

// Renderer produces the JSON body of a batch.
type Renderer interface {
	Render() string
}

// Outcome is the result of one send or probe. Err is nil on success.
type Outcome struct {
	Status  int
	Payload map[string]any
	Err     error
}

// OK reports whether the exchange succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Transport talks to one collector endpoint.
type Transport struct {
	apiKey   string
	secret   string
	endpoint string
	client   *http.Client
	mode     Mode
	delay    time.Duration
	logger   *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

func WithEndpoint(endpoint string) Option {
	return func(t *Transport) { t.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

func WithMode(m Mode) Option {
	return func(t *Transport) { t.mode = m }
}

// WithSimulationDelay overrides DefaultSimulationDelay.
func WithSimulationDelay(d time.Duration) Option {
	return func(t *Transport) { t.delay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

var stripper = strings.NewReplacer("\n", "", "\r", "", " ", "", "\t", "")

// New creates a transport. Whitespace is removed from apiKey and secret.
func New(apiKey, secret string, opts ...Option) *Transport {
	t := &Transport{
		apiKey:   stripper.Replace(apiKey),
		secret:   stripper.Replace(secret),
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		delay:    DefaultSimulationDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mode returns the configured mode.
func (t *Transport) Mode() Mode { return t.mode }

// Sign returns the lowercase hex HMAC-SHA512 of body keyed by secret.
func Sign(secret, body string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the valid signature of body.
func Verify(secret, body, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hmac.Equal(mac.Sum(nil), want)
}

// Signature signs body with the sanitized secret.
func (t *Transport) Signature(body string) string {
	return Sign(t.secret, body)
}

// SignedURL returns the endpoint with api_key and signature parameters.
// Extra leading parameters such as "ping" are inserted before them.
func (t *Transport) SignedURL(body string, leading ...string) string {
	var b strings.Builder
	b.WriteString(t.endpoint)
	if strings.Contains(t.endpoint, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	for _, p := range leading {
		b.WriteString(p)
		b.WriteByte('&')
	}
	b.WriteString("api_key=")
	b.WriteString(url.QueryEscape(t.apiKey))
	b.WriteString("&signature=")
	b.WriteString(t.Signature(body))
	return b.String()
}

// Send posts the rendered batch. The body is rendered before Send returns so
// the caller may mutate its queue afterwards.
func (t *Transport) Send(ctx context.Context, batch Renderer) <-chan Outcome {
	body := batch.Render()
	out := make(chan Outcome, 1)
	go func() {
		out <- t.exchange(ctx, http.MethodPost, t.SignedURL(body), body, true)
	}()
	return out
}

// CheckAvailability issues a bodiless signed GET to test reachability. Any
// response that is not an error counts as available.
func (t *Transport) CheckAvailability(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		out <- t.exchange(ctx, http.MethodGet, t.SignedURL("", "ping"), "", false)
	}()
	return out
}

func (t *Transport) exchange(ctx context.Context, method, target, body string, requireOK bool) Outcome {
	switch t.mode {
	case SimulateOffline:
		if err := t.wait(ctx); err != nil {
			return failure(KindNetwork, 0, "cancelled", err)
		}
		t.logger.Debug("simulating offline collector")
		return failure(KindOffline, 0, "simulating offline, test mode simulate_offline", nil)
	case SimulateServer:
		if err := t.wait(ctx); err != nil {
			return failure(KindNetwork, 0, "cancelled", err)
		}
		t.logger.Debug("simulating collector response")
		return simulatedResponse()
	}

	t.logger.Debug("sending request", "method", method, "url", t.endpoint, "bytes", len(body))

	var reqBody io.Reader
	if method == http.MethodPost {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return failure(KindNetwork, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SdkType", SDKType)
	req.Header.Set("SdkVersion", SDKVersion)

	resp, err := t.client.Do(req)
	if err != nil {
		return classify(statusFromError(err.Error()), nil, err, requireOK)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(resp.StatusCode, nil, err, requireOK)
	}
	t.logger.Debug("received response", "status", resp.StatusCode, "bytes", len(data))
	return classify(resp.StatusCode, data, nil, requireOK)
}

func (t *Transport) wait(ctx context.Context) error {
	if t.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify turns a raw exchange into an Outcome. status may be 0 when it
// could not be determined.
func classify(status int, body []byte, transportErr error, requireOK bool) Outcome {
	if status == http.StatusContinue {
		status = http.StatusOK
	}
	if transportErr != nil {
		return failure(KindNetwork, status, transportErr.Error(), transportErr)
	}

	payload := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
			return failure(KindMalformed, status, "error parsing JSON result data", err)
		}
	}

	if status != 0 && (status < 200 || status > 299) {
		o := failure(KindHTTPStatus, status, fmt.Sprintf("http status code %d indicates invalid action", status), nil)
		o.Payload = payload
		return o
	}

	if requireOK {
		s, ok := payload["status"].(string)
		if !ok || !strings.EqualFold(s, "ok") {
			o := failure(KindStatus, status, fmt.Sprintf("collector status %v", payload["status"]), nil)
			o.Payload = payload
			return o
		}
	}
	return Outcome{Status: status, Payload: payload}
}

// statusFromError reads a leading HTTP status token such as "404 Not Found"
// from an error string. It returns 0 when there is none.
func statusFromError(msg string) int {
	token, _, _ := strings.Cut(strings.TrimSpace(msg), " ")
	code, err := strconv.Atoi(token)
	if err != nil || code < 100 || code > 999 {
		return 0
	}
	return code
}

func failure(kind Kind, status int, msg string, err error) Outcome {
	return Outcome{Status: status, Err: &Error{Kind: kind, Status: status, Message: msg, Err: err}}
}

func simulatedResponse() Outcome {
	return Outcome{
		Status: http.StatusOK,
		Payload: map[string]any{
			"status":     "ok",
			"request_id": "2a7-558bf465ed65-b79a84",
			"time":       "2015-06-26 12:00:00 UTC",
		},
	}
}
