// Package catalog lists and downloads archives from the public data archive, an
// S3 bucket exposed through the ListObjects (v1) protocol.
package catalog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"binance-mirror/internal/market"
)

const (
	// DefaultBaseURL is the bucket endpoint of data.binance.vision.
	DefaultBaseURL = "https://s3-ap-northeast-1.amazonaws.com/data.binance.vision"

	// maxKeys is the largest page the listing endpoint returns.
	maxKeys = 1000

	defaultListTimeout  = 60 * time.Second
	defaultFetchTimeout = 5 * time.Minute
)

// Client lists symbols and archive files for one market selection.
type Client struct {
	baseURL      string
	sel          market.Selection
	rc           *resty.Client
	logger       *slog.Logger
	listTimeout  time.Duration
	fetchTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.rc = resty.NewWithClient(hc)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeouts sets the per-request timeouts for listing pages and archive downloads.
func WithTimeouts(list, fetch time.Duration) Option {
	return func(c *Client) {
		c.listTimeout = list
		c.fetchTimeout = fetch
	}
}

// New creates a catalog client rooted at baseURL.
func New(baseURL string, sel market.Selection, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		sel:          sel,
		rc:           resty.NewWithClient(newHTTPClient()),
		logger:       slog.Default(),
		listTimeout:  defaultListTimeout,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rc.SetLogger(restyLogger{c.logger})
	return c
}

// Selection returns the market selection the client lists.
func (c *Client) Selection() market.Selection { return c.sel }

// ListSymbols returns every symbol under the selection, sorted and deduplicated.
// On failure the symbols gathered so far are returned together with a *ListingError;
// callers must not read a partial result as the complete symbol set.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	prefix := market.SymbolsPrefix(c.sel)
	raw, err := c.paginate(ctx, prefix, (*listBucketResult).prefixes)

	seen := make(map[string]bool, len(raw))
	symbols := make([]string, 0, len(raw))
	for _, p := range raw {
		sym := strings.Trim(strings.TrimPrefix(p, prefix), "/")
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, err
}

// ListFiles returns the archive keys of symbol at frequency f in listing order,
// without checksum sidecars. Partial results accompany a *ListingError.
func (c *Client) ListFiles(ctx context.Context, f market.Frequency, symbol string) ([]string, error) {
	raw, err := c.paginate(ctx, market.FilesPrefix(c.sel, f, symbol), (*listBucketResult).keys)
	files := make([]string, 0, len(raw))
	for _, k := range raw {
		if market.IsArchiveKey(k) {
			files = append(files, k)
		}
	}
	return files, err
}

// Download fetches one archive.
func (c *Client) Download(ctx context.Context, key market.ArchiveKey) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	url := c.baseURL + "/" + key.RemotePath()
	resp, err := c.rc.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// paginate walks a prefix page by page. pick selects the items of a page. The marker
// advances to NextMarker, or to the last item when the server omits it.
func (c *Client) paginate(ctx context.Context, prefix string, pick func(*listBucketResult) []string) ([]string, error) {
	var items []string
	seen := make(map[string]bool)
	marker := ""
	for page := 1; ; page++ {
		res, err := c.listPage(ctx, prefix, marker)
		if err != nil {
			c.logger.Warn("listing stopped", "prefix", prefix, "page", page, "items", len(items), "error", err)
			return items, err
		}
		found := pick(res)
		for _, it := range found {
			if !seen[it] {
				seen[it] = true
				items = append(items, it)
			}
		}
		if !res.IsTruncated {
			c.logger.Debug("listing done", "prefix", prefix, "pages", page, "items", len(items))
			return items, nil
		}

		next := res.NextMarker
		if next == "" && len(found) > 0 {
			next = found[len(found)-1]
		}
		if next == "" || next == marker {
			err := &ListingError{Prefix: prefix, Marker: marker, Err: errors.New("truncated page without a usable marker")}
			c.logger.Warn("listing stopped", "prefix", prefix, "page", page, "items", len(items), "error", err)
			return items, err
		}
		marker = next
	}
}

func (c *Client) listPage(ctx context.Context, prefix, marker string) (*listBucketResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	req := c.rc.R().SetContext(ctx).SetQueryParams(map[string]string{
		"prefix":    prefix,
		"delimiter": "/",
		"max-keys":  strconv.Itoa(maxKeys),
	})
	if marker != "" {
		req.SetQueryParam("marker", marker)
	}
	resp, err := req.Get(c.baseURL)
	if err != nil {
		return nil, &ListingError{Prefix: prefix, Marker: marker, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &ListingError{Prefix: prefix, Marker: marker, StatusCode: resp.StatusCode()}
	}

	var res listBucketResult
	if err := xml.Unmarshal(resp.Body(), &res); err != nil {
		return nil, &ListingError{Prefix: prefix, Marker: marker, Err: fmt.Errorf("parse XML: %w", err)}
	}
	return &res, nil
}

// restyLogger routes resty's internal warnings through slog.
type restyLogger struct{ l *slog.Logger }

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
