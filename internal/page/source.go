package page

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/html"
)

// Source loads one snapshot of a page.
type Source interface {
	Load(ctx context.Context) (*html.Node, error)
}

// NewSource picks a loader for the URL scheme.
func NewSource(u *url.URL, client *http.Client) (Source, error) {
	switch u.Scheme {
	case "http", "https":
		if client == nil {
			client = &http.Client{Timeout: 15 * time.Second}
		}
		return &HTTPSource{url: u.String(), client: client}, nil
	case "file":
		return &FileSource{path: u.Path}, nil
	default:
		return nil, fmt.Errorf("unsupported page scheme %q", u.Scheme)
	}
}

// HTTPSource fetches the page with a plain GET.
type HTTPSource struct {
	url    string
	client *http.Client
}

func (s *HTTPSource) Load(ctx context.Context) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "trade-monitor/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching page: %s", resp.Status)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return root, nil
}

// FileSource reads a page snapshot written by a browser or another tool.
type FileSource struct {
	path string
}

func (s *FileSource) Load(ctx context.Context) (*html.Node, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page snapshot: %w", err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page snapshot: %w", err)
	}
	return root, nil
}
