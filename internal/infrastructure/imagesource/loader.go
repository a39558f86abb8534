package imagesource

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
)

const (
	defaultMaxBytes = 10 << 20
	defaultTimeout  = 10 * time.Second
	maxRedirects    = 5
)

// Config controls where images may be loaded from
type Config struct {
	MaxBytes    int64
	Timeout     time.Duration
	AllowRemote bool
	// AllowedHosts restricts remote fetches to these hosts and their
	// subdomains; empty allows any host once AllowRemote is set
	AllowedHosts    []string
	AllowLocalFiles bool
	// BaseDir confines local references; empty means any path
	BaseDir string
}

// Loader resolves image references: inline bytes, data URIs, http(s) URLs and
// (when enabled) local files
type Loader struct {
	httpClient  *http.Client
	maxBytes    int64
	allowRemote bool
	allowHosts  []string
	allowLocal  bool
	baseDir     string
	logger      zerolog.Logger
}

// NewLoader creates an image loader
func NewLoader(config Config, logger zerolog.Logger) *Loader {
	maxBytes := config.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseDir := config.BaseDir
	if baseDir != "" {
		if abs, err := filepath.Abs(baseDir); err == nil {
			baseDir = abs
		}
	}

	var hosts []string
	for _, h := range config.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}

	l := &Loader{
		maxBytes:    maxBytes,
		allowRemote: config.AllowRemote,
		allowHosts:  hosts,
		allowLocal:  config.AllowLocalFiles,
		baseDir:     baseDir,
		logger:      logger,
	}
	l.httpClient = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if !l.hostAllowed(req.URL.Hostname()) {
				return fmt.Errorf("redirect to host %q not allowed", req.URL.Hostname())
			}
			return nil
		},
	}
	return l
}

// hostAllowed matches host against the allow-list, accepting subdomains
func (l *Loader) hostAllowed(host string) bool {
	if len(l.allowHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range l.allowHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// Load returns the encoded bytes of img
func (l *Loader) Load(ctx context.Context, img domain.ImageInput) ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}

	ref := strings.TrimSpace(img.Ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", domain.ErrImageDecode)
	case strings.HasPrefix(ref, "data:"):
		return l.decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		if !l.allowRemote {
			return nil, fmt.Errorf("%w: remote images disabled", domain.ErrImageDecode)
		}
		return l.fetch(ctx, ref)
	default:
		if !l.allowLocal {
			return nil, fmt.Errorf("%w: unsupported reference %q", domain.ErrImageDecode, ref)
		}
		return l.readFile(ref)
	}
}

// decodeDataURI handles data:[<mime>][;base64],<payload>
func (l *Loader) decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", domain.ErrImageDecode)
	}
	if int64(len(payload)) > l.maxBytes*4/3+4 {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrImageDecode, l.maxBytes)
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	return []byte(data), nil
}

func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	if !l.hostAllowed(req.URL.Hostname()) {
		return nil, fmt.Errorf("%w: host %q not allowed", domain.ErrImageDecode, req.URL.Hostname())
	}
	req.Header.Set("User-Agent", "DraftLens/1.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Debug().Err(err).Str("ref", ref).Msg("image fetch failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrImageDecode, resp.StatusCode)
	}
	return l.readLimited(resp.Body)
}

func (l *Loader) readFile(ref string) ([]byte, error) {
	path := ref
	if l.baseDir != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.baseDir, path)
		}
		rel, err := filepath.Rel(l.baseDir, filepath.Clean(path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%w: %q is outside the image directory", domain.ErrImageDecode, ref)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	defer f.Close()

	return l.readLimited(f)
}

// readLimited reads at most maxBytes and fails on larger payloads
func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrImageDecode, l.maxBytes)
	}
	return data, nil
}
