// Package download locates and fetches the latest registry export archive.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

var archivePattern = regexp.MustCompile(`Gesamtdatenexport_(\d{8}).*\.zip`)

const dateLayout = "20060102"

// Link is one archive offered on the download page.
type Link struct {
	Name string    // File name: Gesamtdatenexport_20230615_23.2.zip
	URL  string    // Absolute download URL
	Date time.Time // Publication date from the file name
}

// Options configures a Downloader.
type Options struct {
	PageURL          string
	BaseURL          string
	PageTimeout      time.Duration
	RetryMax         int
	ProgressInterval time.Duration

	// HTTPClient overrides the transport used by the retrying client.
	HTTPClient *http.Client
}

// Downloader discovers and downloads export archives.
type Downloader struct {
	pageURL          string
	base             *url.URL
	pageTimeout      time.Duration
	progressInterval time.Duration
	client           *retryablehttp.Client
}

// New returns a Downloader. BaseURL must be an absolute URL.
func New(opts Options) (*Downloader, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid download base URL %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.Logger = logging.FromContext(context.Background())
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	}

	d := &Downloader{
		pageURL:          opts.PageURL,
		base:             base,
		pageTimeout:      opts.PageTimeout,
		progressInterval: opts.ProgressInterval,
		client:           client,
	}
	if d.pageTimeout <= 0 {
		d.pageTimeout = 20 * time.Second
	}
	if d.progressInterval <= 0 {
		d.progressInterval = 10 * time.Second
	}
	return d, nil
}

// SetRetryWait overrides the backoff bounds of the HTTP client.
func (d *Downloader) SetRetryWait(min, max time.Duration) {
	d.client.RetryWaitMin = min
	d.client.RetryWaitMax = max
}

// Latest fetches the download page and returns the newest archive link.
func (d *Downloader) Latest(ctx context.Context) (Link, error) {
	ctx, cancel := context.WithTimeout(ctx, d.pageTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, d.pageURL, nil)
	if err != nil {
		return Link{}, fmt.Errorf("build request for %s: %w", d.pageURL, err)
	}
	res, err := d.client.Do(req)
	if err != nil {
		return Link{}, fmt.Errorf("get %s: %w: %w", d.pageURL, core.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Link{}, fmt.Errorf("get %s: status code %d: %w", d.pageURL, res.StatusCode, core.ErrNetwork)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return Link{}, fmt.Errorf("parse HTML from %s: %w: %w", d.pageURL, core.ErrNetwork, err)
	}

	link, ok := newestLink(doc, d.base)
	if !ok {
		return Link{}, fmt.Errorf("no Gesamtdatenexport archive on %s: %w", d.pageURL, core.ErrNotFound)
	}
	logging.FromContext(ctx).Info("latest export found", "file", link.Name, "date", link.Date.Format("2006-01-02"))
	return link, nil
}

// newestLink scans every anchor for an archive name and keeps the newest date.
func newestLink(doc *goquery.Document, base *url.URL) (Link, bool) {
	var (
		best  Link
		found bool
	)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := archivePattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		date, err := time.Parse(dateLayout, m[1])
		if err != nil {
			return
		}
		abs, err := resolve(base, href)
		if err != nil {
			return
		}
		if !found || date.After(best.Date) {
			best = Link{Name: path.Base(abs.Path), URL: abs.String(), Date: date}
			found = true
		}
	})
	return best, found
}

// resolve joins href below base. Absolute hrefs are kept; leading slashes of
// relative ones are dropped so the base path is preserved.
func resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	ref.Path = strings.TrimLeft(ref.Path, "/")
	return base.ResolveReference(ref), nil
}

// Fetch downloads the newest archive into outDir and returns its path.
func (d *Downloader) Fetch(ctx context.Context, outDir string) (string, error) {
	link, err := d.Latest(ctx)
	if err != nil {
		return "", err
	}
	return d.Download(ctx, link, outDir)
}

// Download streams link into outDir. The file is written as <name>.part and
// renamed once complete, so an interrupted transfer never looks like an archive.
func (d *Downloader) Download(ctx context.Context, link Link, outDir string) (string, error) {
	log := logging.WithFields(ctx, "file", link.Name)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", outDir, err)
	}

	total := d.contentLength(ctx, link.URL)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", link.URL, err)
	}
	res, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w: %w", link.URL, core.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: status code %d: %w", link.URL, res.StatusCode, core.ErrNetwork)
	}
	if total <= 0 {
		total = res.ContentLength
	}

	final := filepath.Join(outDir, link.Name)
	partial := final + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", partial, err)
	}

	log.Info("downloading archive", "url", link.URL, "size", sizeString(total))
	start := time.Now()
	counter := core.NewStreamingCountingReader(res.Body, total)
	stop := d.reportProgress(ctx, counter)

	_, err = io.Copy(out, counter)
	stop()
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("download %s: %w: %w", link.Name, core.ErrNetwork, err)
	}

	if err := os.Rename(partial, final); err != nil {
		return "", fmt.Errorf("rename %s: %w", partial, err)
	}

	log.Info("download complete",
		"path", final,
		"size", humanize.Bytes(uint64(counter.BytesRead())),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return final, nil
}

// contentLength asks for the archive size with a HEAD request.
// Returns 0 when the server does not tell.
func (d *Downloader) contentLength(ctx context.Context, u string) int64 {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return 0
	}
	res, err := d.client.Do(req)
	if err != nil {
		logging.FromContext(ctx).Debug("HEAD request failed", "url", u, "error", err)
		return 0
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0
	}
	return res.ContentLength
}

// reportProgress logs the transfer state every progress interval until the
// returned stop function is called.
func (d *Downloader) reportProgress(ctx context.Context, counter *core.StreamingCountingReader) (stop func()) {
	log := logging.FromContext(ctx)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(d.progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if counter.Total > 0 {
					log.Info("download progress",
						"percent", counter.Progress(),
						"read", humanize.Bytes(uint64(counter.BytesRead())),
						"total", humanize.Bytes(uint64(counter.Total)),
					)
				} else {
					log.Info("download progress", "read", humanize.Bytes(uint64(counter.BytesRead())))
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func sizeString(n int64) string {
	if n <= 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}
