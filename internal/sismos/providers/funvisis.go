package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/sony/gobreaker"
	"golang.org/x/text/encoding/charmap"

	"github.com/sismosve/sismos-api/internal/common"
	"github.com/sismosve/sismos-api/internal/observability"
	"github.com/sismosve/sismos-api/internal/sismos"
)

// FunvisisURL is the public FUNVISIS feed.
const FunvisisURL = "http://www.funvisis.gob.ve/maravilla.json"

// maxBodyBytes bounds how much of the feed is read into memory.
const maxBodyBytes = 32 << 20

// The feed rejects requests without a browser-like header set. Setting
// Accept-Encoding by hand turns off net/http's transparent gzip, so bodies
// are decompressed in decodeBody.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "es-ES,es;q=0.9,en;q=0.8",
	"Accept-Encoding": "gzip, deflate",
	"Connection":      "keep-alive",
}

// FunvisisProvider implements the sismos.Source interface for the FUNVISIS feed.
type FunvisisProvider struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFunvisisProvider creates a provider for url. The client's Timeout bounds
// each request; maxRetries 0 issues a single request per fetch.
func NewFunvisisProvider(client *http.Client, url string, maxRetries int, logger *slog.Logger, metrics *observability.Metrics) *FunvisisProvider {
	if url == "" {
		url = FunvisisURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "funvisis",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &FunvisisProvider{
		name: "funvisis",
		url:  url,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      maxRetries,
				InitialInterval: 1 * time.Second,
				MaxInterval:     10 * time.Second,
			},
		},
		circuit: cb,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *FunvisisProvider) Name() string {
	return p.name
}

// Fetch downloads and validates the feed. Errors wrap sismos.ErrNetwork or
// sismos.ErrDecode.
func (p *FunvisisProvider) Fetch(ctx context.Context) (sismos.RawCollection, error) {
	start := time.Now()
	raw, err := p.fetch(ctx)

	outcome := "success"
	switch {
	case errors.Is(err, sismos.ErrDecode):
		outcome = "decode_error"
	case err != nil:
		outcome = "network_error"
	}
	p.metrics.FetchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return raw, err
}

func (p *FunvisisProvider) fetch(ctx context.Context) (sismos.RawCollection, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range browserHeaders {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return sismos.RawCollection{}, fmt.Errorf("%w: %w", sismos.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return sismos.RawCollection{}, fmt.Errorf("%w: read body: %w", sismos.ErrNetwork, err)
	}

	if ct := resp.Header.Get("Content-Type"); !common.HasAnyFold(ct, "json") {
		p.logger.Debug("feed declared a non-JSON content type", "content_type", ct)
	}

	body, err = decodeBody(body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return sismos.RawCollection{}, fmt.Errorf("%w: %w", sismos.ErrDecode, err)
	}

	raw, err := decodeFeed(body)
	if err != nil {
		return sismos.RawCollection{}, fmt.Errorf("%w: %w", sismos.ErrDecode, err)
	}
	if err := raw.Validate(); err != nil {
		return sismos.RawCollection{}, fmt.Errorf("%w: %w", sismos.ErrDecode, err)
	}

	p.logger.Info("feed downloaded", "source", p.name, "features", len(raw.Features))
	return raw, nil
}

// decodeFeed parses body as JSON. If the structured decode fails, or the body
// is not valid UTF-8, the body is treated as text (BOM and whitespace
// stripped, Windows-1252 re-encoded to UTF-8) and parsed once more.
func decodeFeed(body []byte) (sismos.RawCollection, error) {
	var raw sismos.RawCollection
	firstErr := json.Unmarshal(body, &raw)
	if firstErr == nil && utf8.Valid(body) {
		return raw, nil
	}

	// encoding/json would otherwise turn Latin-1 accents into U+FFFD.
	var retry sismos.RawCollection
	if err := json.Unmarshal(asText(body), &retry); err != nil {
		return sismos.RawCollection{}, errors.Join(firstErr, err)
	}
	return retry, nil
}

func asText(body []byte) []byte {
	text := common.TrimBOM(body)
	if utf8.Valid(text) {
		return text
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(text)
	if err != nil {
		return text
	}
	return decoded
}

// decodeBody undoes gzip or deflate content coding, either declared or
// detected by the gzip magic number.
func decodeBody(body []byte, encoding string) ([]byte, error) {
	switch {
	case common.HasAnyFold(encoding, "gzip") || bytes.HasPrefix(body, []byte{0x1f, 0x8b}):
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return readBounded(zr)

	case common.HasAnyFold(encoding, "deflate"):
		// "deflate" is zlib-wrapped per RFC 9110, but some servers send raw deflate.
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			return readBounded(zr)
		}
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		return readBounded(fr)
	}
	return body, nil
}

func readBounded(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}
