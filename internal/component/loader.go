package component

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TemplateLoader fetches template markup by URL.
type TemplateLoader interface {
	Load(ctx context.Context, url string) (string, error)
}

// LoaderFunc adapts a function to TemplateLoader.
type LoaderFunc func(ctx context.Context, url string) (string, error)

// Load implements TemplateLoader
func (f LoaderFunc) Load(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// maxTemplateSize bounds a fetched template body.
const maxTemplateSize = 4 << 20

// HTTPLoader fetches templates with a plain GET. Relative URLs are resolved
// against BaseURL. Non-2xx responses are errors.
type HTTPLoader struct {
	Client  *http.Client
	BaseURL string
	// Timeout bounds each fetch when positive.
	Timeout time.Duration
}

// Load implements TemplateLoader
func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (string, error) {
	target, err := l.resolve(rawURL)
	if err != nil {
		return "", err
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("GET %s: %s", target, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateSize))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", target, err)
	}
	return string(body), nil
}

func (l *HTTPLoader) resolve(rawURL string) (string, error) {
	if l.BaseURL == "" {
		return rawURL, nil
	}
	base, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", l.BaseURL, err)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid template URL %q: %w", rawURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// FSLoader reads templates from a file system. URLs are treated as slash
// separated paths; a leading slash is ignored.
type FSLoader struct {
	FS fs.FS
}

// Load implements TemplateLoader
func (l *FSLoader) Load(_ context.Context, url string) (string, error) {
	name := strings.TrimPrefix(url, "/")
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid template path %q", url)
	}
	data, err := fs.ReadFile(l.FS, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
