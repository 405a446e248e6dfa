package runner

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NewHTTPClient returns a client tuned for many concurrent keep-alive
// connections against a single gateway.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}

// InferURL joins the gateway base URL with the /infer path.
func InferURL(gateway string) string {
	return strings.TrimRight(gateway, "/") + "/infer"
}

// Issuer performs a single request/response cycle against /infer.
type Issuer struct {
	client *http.Client
	url    string
	prefix string
	body   BodyBuilder
}

func NewIssuer(client *http.Client, gateway, prefix string, body BodyBuilder) *Issuer {
	if body == nil {
		body = DefaultBody
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Issuer{
		client: client,
		url:    InferURL(gateway),
		prefix: prefix,
		body:   body,
	}
}

// WithPrefix returns a copy of the issuer that labels request ids with prefix.
func (is *Issuer) WithPrefix(prefix string) *Issuer {
	cp := *is
	cp.prefix = prefix
	return &cp
}

// Issue sends request index and classifies what happened. It never returns
// an error: every failure mode ends up in the returned Attempt.
func (is *Issuer) Issue(ctx context.Context, index int) Attempt {
	bodyBytes, err := is.body.Build(is.prefix, index)
	if err != nil {
		return Attempt{Category: "PayloadError"}
	}

	start := time.Now()
	status, err := is.roundTrip(ctx, bodyBytes)
	latency := time.Since(start)

	a := Attempt{
		Outcome: Outcome{
			LatencyMs:  float64(latency) / float64(time.Millisecond),
			StatusCode: status,
			Success:    status == StatusSuccess,
		},
	}
	if err != nil {
		a.Outcome.StatusCode = 0
		a.Outcome.Success = false
		a.Category = Categorize(err)
	}
	return a
}

// roundTrip returns the status once the whole body has been consumed.
func (is *Issuer) roundTrip(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, is.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := is.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, &readError{err: err}
	}
	return resp.StatusCode, nil
}

type readError struct {
	err error
}

func (e *readError) Error() string { return "read response body: " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

// Categorize maps a transport error to the label used in the failure tally.
func Categorize(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}

	var readErr *readError
	if errors.As(err, &readErr) {
		return "ReadError"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNSError"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "ConnectionError"
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "ProtocolError"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return "InvalidURL"
	}

	return typeName(innermost(err))
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimLeft(name, "*")
	if name == "" || name == "errorString" {
		return "RequestError"
	}
	return name
}
