// Package rem locates and downloads the latest Relevamiento de Expectativas de
// Mercado workbook from the BCRA site.
package rem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

// ErrNoWorkbookLink is returned when the publications page has no matching workbook link.
var ErrNoWorkbookLink = errors.New("rem: no workbook link found")

const maxPageSize = 2 << 20

type Config struct {
	PageURL    string
	BaseURL    string
	LinkMarker string
	UserAgent  string
}

type Client struct {
	http   *http.Client
	cfg    Config
	logger *log.Logger
}

func New(client *http.Client, cfg Config, logger *log.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{http: client, cfg: cfg, logger: logger}
}

// FindWorkbookLink fetches the publications page and returns the absolute URL
// of the first .xlsx link whose href contains the configured marker.
func (c *Client) FindWorkbookLink(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.cfg.PageURL, maxPageSize)
	if err != nil {
		return "", fmt.Errorf("failed to fetch REM page: %w", err)
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse REM page: %w", err)
	}

	href := findLink(doc, strings.ToLower(c.cfg.LinkMarker))
	if href == "" {
		return "", ErrNoWorkbookLink
	}
	return c.resolve(href)
}

func findLink(n *html.Node, marker string) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		href := getAttr(n, "href")
		if strings.HasSuffix(href, ".xlsx") && strings.Contains(strings.ToLower(href), marker) {
			return href
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if href := findLink(child, marker); href != "" {
			return href
		}
	}
	return ""
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func (c *Client) resolve(href string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid workbook link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Download saves the latest workbook to dest. When the link cannot be found or
// the download fails, an existing dest is kept and reported with fresh=false;
// an error is returned only when there is nothing usable at dest.
func (c *Client) Download(ctx context.Context, dest string) (fresh bool, err error) {
	link, err := c.FindWorkbookLink(ctx)
	if err == nil {
		c.logger.Debug("found REM workbook", "url", link)
		err = c.save(ctx, link, dest)
		if err == nil {
			c.logger.Info("REM workbook downloaded", "path", dest)
			return true, nil
		}
	}

	if _, statErr := os.Stat(dest); statErr == nil {
		c.logger.Warn("using local REM workbook", "path", dest, "error", err)
		return false, nil
	}
	return false, err
}

func (c *Client) save(ctx context.Context, link, dest string) error {
	body, err := c.get(ctx, link, 0)
	if err != nil {
		return fmt.Errorf("failed to download workbook: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("error writing workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// get performs a GET and returns the body of a 200 response, capped at limit
// bytes when limit is positive.
func (c *Client) get(ctx context.Context, rawURL string, limit int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if limit > 0 {
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(resp.Body, limit), resp.Body}, nil
	}
	return resp.Body, nil
}
