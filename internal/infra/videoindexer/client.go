package videoindexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/bryanwahyu/drishti/internal/domain/audit"
	"github.com/bryanwahyu/drishti/internal/logging"
)

const (
	StateProcessed   = "Processed"
	StateFailed      = "Failed"
	StateQuarantined = "Quarantined"
)

type Options struct {
	AccountID      string
	Location       string
	APIBaseURL     string
	Language       string
	Privacy        string
	IndexingPreset string

	PollInterval    time.Duration
	PollMaxInterval time.Duration
	PollTimeout     time.Duration
	PollMaxAttempts int
	UploadTimeout   time.Duration
}

// Client talks to the Video Indexer REST API.
type Client struct {
	opts       Options
	tokens     *TokenSource
	httpClient *http.Client
}

func NewClient(opts Options, tokens *TokenSource, httpClient *http.Client) *Client {
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = "https://api.videoindexer.ai"
	}
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.Privacy == "" {
		opts.Privacy = "Private"
	}
	if opts.IndexingPreset == "" {
		opts.IndexingPreset = "Default"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.PollMaxInterval <= 0 {
		opts.PollMaxInterval = 5 * time.Minute
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 2 * time.Hour
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{opts: opts, tokens: tokens, httpClient: httpClient}
}

func (c *Client) videosURL() string {
	return fmt.Sprintf("%s/%s/Accounts/%s/Videos", c.opts.APIBaseURL, url.PathEscape(c.opts.Location), url.PathEscape(c.opts.AccountID))
}

// Upload streams a local file to the indexer and returns the remote video id.
func (c *Client) Upload(ctx context.Context, localPath, name string) (string, error) {
	const op = "upload"

	token, err := c.tokens.AccountToken(ctx)
	if err != nil {
		return "", audit.NewError(audit.ErrAuth, op, err)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", audit.NewError(audit.ErrTransfer, op, err)
	}
	defer f.Close()

	if c.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.UploadTimeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("accessToken", token)
	q.Set("name", name)
	q.Set("language", c.opts.Language)
	q.Set("privacy", c.opts.Privacy)
	q.Set("indexingPreset", c.opts.IndexingPreset)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="video.mp4"`)
		h.Set("Content-Type", "video/mp4")
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.videosURL()+"?"+q.Encode(), pr)
	if err != nil {
		pr.Close()
		return "", audit.NewError(audit.ErrTransfer, op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", audit.NewError(audit.ErrTransfer, op, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.tokens.Invalidate()
		return "", audit.Errorf(audit.ErrAuth, op, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return "", audit.Errorf(audit.ErrTransfer, op, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.ID == "" {
		return "", audit.Errorf(audit.ErrTransfer, op, "response has no video id: %s", strings.TrimSpace(string(body)))
	}

	logging.WithContext(ctx).Info("video uploaded",
		"indexer_video_id", out.ID,
		"portal_url", fmt.Sprintf("https://www.videoindexer.ai/accounts/%s/videos/%s", c.opts.AccountID, out.ID),
		"index_url", c.videosURL()+"/"+out.ID+"/Index",
	)
	return out.ID, nil
}

var errStillProcessing = errors.New("indexing still in progress")

// WaitForProcessing polls the index until it reaches a terminal state or the
// poll budget runs out.
func (c *Client) WaitForProcessing(ctx context.Context, remoteID string) (audit.Insights, error) {
	const op = "wait"
	log := logging.WithContext(ctx).With("indexer_video_id", remoteID)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.PollInterval
	b.Multiplier = 1.5
	b.MaxInterval = c.opts.PollMaxInterval
	b.RandomizationFactor = 0.1
	b.Reset()

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.opts.PollTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Info("indexing not finished", "reason", err.Error(), "next_check", next.String())
		}),
	}
	if c.opts.PollMaxAttempts > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(uint(c.opts.PollMaxAttempts)))
	}

	idx, err := backoff.Retry(ctx, func() (*VideoIndex, error) {
		return c.checkIndex(ctx, remoteID)
	}, retryOpts...)
	if err != nil {
		var ae *audit.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, audit.NewError(audit.ErrTimeout, op, ctx.Err())
		}
		return nil, audit.Errorf(audit.ErrTimeout, op, "gave up after %s: %v", c.opts.PollTimeout, err)
	}

	log.Info("indexing complete")
	return idx, nil
}

// checkIndex runs one poll. Terminal failures come back as permanent errors.
func (c *Client) checkIndex(ctx context.Context, remoteID string) (*VideoIndex, error) {
	const op = "wait"

	token, err := c.tokens.AccountToken(ctx)
	if err != nil {
		return nil, backoff.Permanent(audit.NewError(audit.ErrAuth, op, err))
	}
	endpoint := c.videosURL() + "/" + url.PathEscape(remoteID) + "/Index?accessToken=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(audit.NewError(audit.ErrTransfer, op, err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		return nil, fmt.Errorf("status %d, token refreshed", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(audit.Errorf(audit.ErrTransfer, op, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var idx VideoIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}

	switch idx.State {
	case StateProcessed:
		logging.WithContext(ctx).Debug("index payload", "json", truncate(body, 1000))
		return &idx, nil
	case StateFailed:
		return nil, backoff.Permanent(audit.Errorf(audit.ErrProcessing, op, "indexing failed"))
	case StateQuarantined:
		return nil, backoff.Permanent(audit.Errorf(audit.ErrProcessing, op, "content policy violation"))
	default:
		return nil, fmt.Errorf("%w: state %q", errStillProcessing, idx.State)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
