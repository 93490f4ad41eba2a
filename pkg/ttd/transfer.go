package ttd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/metrics"
)

// Upload PUTs contents to a presigned URL returned by fileUpload. The URL
// carries its own credentials, so no auth header is sent.
func (c *Client) Upload(ctx context.Context, uploadURL string, contents []byte) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "ttd client not configured")
	}
	if strings.TrimSpace(uploadURL) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "upload url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(contents))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upload request")
	}

	start := time.Now()
	resp, err := c.transferClient.Do(req)
	if err != nil {
		c.metrics.Observe(metrics.APIUpload, metrics.OutcomeTransport, time.Since(start))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute upload request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		c.metrics.Observe(metrics.APIUpload, metrics.OutcomeHTTP, time.Since(start))
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.FromHTTPStatus(resp.StatusCode), fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "file upload failed")
	}
	c.metrics.Observe(metrics.APIUpload, metrics.OutcomeOK, time.Since(start))
	c.logg.Debug(ctx, fmt.Sprintf("uploaded %d bytes", len(contents)))
	return nil
}

// Download streams the document at url into w and returns the byte count.
// Report URLs are presigned, like upload URLs.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	if c == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "ttd client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build download request")
	}

	start := time.Now()
	resp, err := c.transferClient.Do(req)
	if err != nil {
		c.metrics.Observe(metrics.APIDownload, metrics.OutcomeTransport, time.Since(start))
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute download request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Observe(metrics.APIDownload, metrics.OutcomeHTTP, time.Since(start))
		return 0, pkgerrors.New(pkgerrors.FromHTTPStatus(resp.StatusCode), fmt.Sprintf("download failed with status %d", resp.StatusCode))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		c.metrics.Observe(metrics.APIDownload, metrics.OutcomeTransport, time.Since(start))
		return n, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read download body")
	}
	c.metrics.Observe(metrics.APIDownload, metrics.OutcomeOK, time.Since(start))
	c.logg.Debug(ctx, fmt.Sprintf("downloaded %d bytes", n))
	return n, nil
}
