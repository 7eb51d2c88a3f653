package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/eleven-am/hlsselect/internal/domain"
)

const (
	defaultUserAgent           = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxIdleConns        = 64
	defaultMaxIdleConnsPerHost = 8
	defaultIdleConnTimeout     = 90 * time.Second
	maxPlaylistBytes           = 4 << 20
)

// NewHTTPClient returns the client used for all probes. Request budgets come
// from contexts, so the client itself carries no timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	}
}

func newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	return req, nil
}

// FetchText downloads a playlist body. Non-2xx responses are errors.
func FetchText(ctx context.Context, client *http.Client, target string) (string, error) {
	req, err := newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// resolveURL resolves a playlist entry against the playlist it came from.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func errorCode(err error) string {
	var status *statusError
	if errors.As(err, &status) {
		return domain.ErrCodeHTTPStatus
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrCodeTimeout
	}
	return domain.ErrCodeConnection
}

func newProbeError(phase domain.ProbePhase, src domain.CandidateSource, target string, err error) *domain.ProbeError {
	return &domain.ProbeError{
		Phase:    phase,
		SourceID: src.ID,
		URL:      target,
		Code:     errorCode(err),
		Err:      err,
	}
}
