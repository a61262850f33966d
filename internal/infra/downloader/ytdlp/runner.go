package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanwahyu/drishti/internal/domain/audit"
	"github.com/bryanwahyu/drishti/internal/logging"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Options struct {
	Binary       string
	WorkDir      string
	Format       string
	AllowedHosts []string
	Timeout      time.Duration
}

// Runner downloads public videos by shelling out to yt-dlp. Every call gets
// its own temp dir, so concurrent sessions never share a file.
type Runner struct {
	opts Options
}

func NewRunner(opts Options) *Runner {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Format == "" {
		opts.Format = "best"
	}
	return &Runner{opts: opts}
}

func (r *Runner) Download(ctx context.Context, videoURL, sessionID string) (*audit.Artifact, error) {
	const op = "download"
	if err := r.checkURL(videoURL); err != nil {
		return nil, audit.NewError(audit.ErrValidation, op, err)
	}

	dir, err := os.MkdirTemp(r.opts.WorkDir, "drishti-"+sessionID+"-")
	if err != nil {
		return nil, audit.NewError(audit.ErrTransfer, op, err)
	}
	cleanup := func() error { return os.RemoveAll(dir) }
	target := filepath.Join(dir, "video.mp4")

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.opts.Binary,
		"-f", r.opts.Format,
		"-o", target,
		"--no-playlist",
		"--extractor-args", "youtube:player_client=android,web",
		"--user-agent", userAgent,
		videoURL,
	)
	// jalankan yt-dlp
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = cleanup()
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, audit.Errorf(audit.ErrTransfer, op, "yt-dlp exited %d: %s", ee.ExitCode(), tail(out))
		}
		return nil, audit.Errorf(audit.ErrTransfer, op, "run yt-dlp: %v", err)
	}

	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		_ = cleanup()
		return nil, audit.Errorf(audit.ErrTransfer, op, "yt-dlp produced no file at %s", target)
	}

	logging.WithContext(ctx).Info("video downloaded",
		"bytes", info.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return audit.NewArtifact(target, cleanup), nil
}

func (r *Runner) checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if len(r.opts.AllowedHosts) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range r.opts.AllowedHosts {
		if host == strings.ToLower(h) {
			return nil
		}
	}
	return fmt.Errorf("host %q is not allowed", host)
}

// tail keeps the last part of the tool output for error messages.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}
