package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/models"
)

const maxErrorBody = 512

// Options configures the HTTP transport
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	Client            *http.Client
}

// HTTP runs each request on its own goroutine and hands the outcome back through Poll
type HTTP struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewHTTP creates an HTTP transport with the given options
func NewHTTP(opts Options) *HTTP {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &HTTP{
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  opts.UserAgent,
	}
}

type outcome struct {
	body []byte
	err  error
}

type httpRequest struct {
	url      string
	cancel   context.CancelFunc
	done     chan outcome
	finished bool
	state    State
	body     []byte
	err      error
}

// Issue starts fetching the URL in the background
func (t *HTTP) Issue(url string) Request {
	ctx, cancel := context.WithCancel(context.Background())
	req := &httpRequest{
		url:    url,
		cancel: cancel,
		done:   make(chan outcome, 1),
	}

	go func() {
		body, err := t.fetch(ctx, url)
		req.done <- outcome{body: body, err: err}
	}()

	return req
}

func (r *httpRequest) URL() string {
	return r.url
}

func (r *httpRequest) Poll() (State, []byte, error) {
	if r.finished {
		return r.state, r.body, r.err
	}

	select {
	case out := <-r.done:
		r.finished = true
		r.cancel()
		if out.err != nil {
			r.state = StateFailure
			r.err = out.err
		} else {
			r.state = StateSuccess
			r.body = out.body
		}
		return r.state, r.body, r.err
	default:
		return StatePending, nil, nil
	}
}

func (r *httpRequest) Cancel() {
	r.cancel()
	if !r.finished {
		r.finished = true
		r.state = StateFailure
		r.err = fmt.Errorf("%w: request cancelled", models.ErrTransport)
	}
}

// fetch is the core HTTP request method
func (t *HTTP) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrTransport, err)
	}

	start := time.Now()
	logger.Debug("Starting GET request to %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating request: %v", models.ErrTransport, err)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		logger.Debug("Request to %s failed after %v: %v", url, elapsed, err)
		return nil, fmt.Errorf("%w: request failed: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	logger.Debug("Request to %s completed in %v with status %d", url, elapsed, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: HTTP error %d: %s", models.ErrTransport, resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading response: %v", models.ErrTransport, err)
	}

	return body, nil
}
