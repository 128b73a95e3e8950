package generate

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/nainya/itemstore/pkg/item"
)

// TimeLayout renders modification times in the *_modifiedtext aspects
const TimeLayout = "Jan 2, 2006, 3:04:05 PM MST"

// Markers replacing a file name or URL that could not be inspected
const (
	InvalidFile = "Invalid File"
	InvalidURL  = "Invalid URL"
)

// ValidResponse reports whether an HTTP status code is a success
func ValidResponse(code int) bool {
	return code >= 200 && code <= 299
}

// EnrichFile adds the file aspects for path to b
func EnrichFile(b *item.Bag, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		b.SetText(item.AspectFileName, InvalidFile)
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		b.SetText(item.AspectFileName, InvalidFile)
		return
	}

	modified := info.ModTime()
	b.SetText(item.AspectFileName, abs)
	b.SetText(item.AspectFileSizeBytes, strconv.FormatInt(info.Size(), 10))
	b.SetText(item.AspectFileModifiedUTC, strconv.FormatInt(modified.UnixMilli(), 10))
	b.SetText(item.AspectFileModifiedText, modified.UTC().Format(TimeLayout))
}

// Fetched is a retrieved URL body with the response details used for enrichment
type Fetched struct {
	URL           *url.URL
	StatusCode    int
	ContentType   string
	ContentLength int64
	LastModified  time.Time
	Body          []byte
}

// Fetcher retrieves URL sources, optionally rate limited
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher creates a fetcher. A nil client means a client with a 30s
// timeout; perSecond <= 0 disables rate limiting.
func NewFetcher(client *http.Client, perSecond float64, burst int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{client: client, limiter: rate.NewLimiter(limit, burst)}
}

// Fetch retrieves rawURL. Non-success status codes are returned, not
// treated as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Fetched, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(ErrGeneration, "malformed URL %q", rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(ErrGeneration, "build request: %v", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrGeneration, "fetch %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrGeneration, "read %s: %v", rawURL, err)
	}

	out := &Fetched{
		URL:           resp.Request.URL,
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Body:          body,
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			out.LastModified = t
		}
	}
	return out, nil
}

// EnrichURL adds the URL aspects for res to b. A failed response records
// only the status code and the invalid marker.
func EnrichURL(b *item.Bag, res *Fetched) {
	b.SetText(item.AspectURLResponseCode, strconv.Itoa(res.StatusCode))
	if !ValidResponse(res.StatusCode) {
		b.SetText(item.AspectURL, InvalidURL)
		return
	}

	var modifiedMillis int64
	modifiedText := ""
	if !res.LastModified.IsZero() {
		modifiedMillis = res.LastModified.UnixMilli()
		modifiedText = res.LastModified.UTC().Format(TimeLayout)
	}

	b.SetText(item.AspectURL, res.URL.String())
	b.SetText(item.AspectURLHost, res.URL.Hostname())
	b.SetText(item.AspectURLPort, portOf(res.URL))
	b.SetText(item.AspectURLPath, res.URL.Path)
	b.SetText(item.AspectURLMimeType, res.ContentType)
	b.SetText(item.AspectURLContentLength, strconv.FormatInt(res.ContentLength, 10))
	b.SetText(item.AspectURLModifiedUTC, strconv.FormatInt(modifiedMillis, 10))
	b.SetText(item.AspectURLModifiedText, modifiedText)
}

func portOf(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return "-1"
	}
}
