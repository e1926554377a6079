package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported asset URL scheme")
	ErrAssetTooLarge     = errors.New("asset exceeds size limit")
)

// readLimited reads r fully, failing once more than limit bytes arrive.
// A limit of zero or less disables the cap.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("more than %d bytes: %w", limit, ErrAssetTooLarge)
	}
	return data, nil
}

// Asset is a fetched, not yet decoded, payload.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// Fetcher retrieves raw asset bytes for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Asset, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}

// HTTPFetcher downloads assets over http and https.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64 // 0 means unlimited
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if f.MaxBytes > 0 && resp.ContentLength > f.MaxBytes {
		return nil, fmt.Errorf("content length %d: %w", resp.ContentLength, ErrAssetTooLarge)
	}
	data, err := readLimited(resp.Body, f.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return &Asset{Name: rawURL, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// FileFetcher reads assets from the local filesystem. With a Root set,
// paths are resolved inside it; ".." cannot climb above the root.
type FileFetcher struct {
	Root     string
	MaxBytes int64 // 0 means unlimited
}

func (f *FileFetcher) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	p := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		p = u.Path
	}

	if f.Root != "" {
		p = filepath.Join(f.Root, filepath.FromSlash(path.Clean("/"+p)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := readLimited(file, f.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return &Asset{Name: p, Data: data}, nil
}

// S3Config holds the connection settings for S3-compatible storage.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// S3Fetcher reads s3://bucket/key objects.
type S3Fetcher struct {
	client *s3.S3
	// MaxBytes caps each object; 0 means unlimited.
	MaxBytes int64
}

// NewS3Fetcher opens an S3 session. Empty keys fall back to the SDK's
// default credential chain.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating S3 session: %w", err)
	}
	return &S3Fetcher{client: s3.New(sess)}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("malformed S3 URL %q", rawURL)
	}

	out, err := f.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	if f.MaxBytes > 0 && aws.Int64Value(out.ContentLength) > f.MaxBytes {
		return nil, fmt.Errorf("object size %d: %w", aws.Int64Value(out.ContentLength), ErrAssetTooLarge)
	}
	data, err := readLimited(out.Body, f.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return &Asset{Name: key, ContentType: aws.StringValue(out.ContentType), Data: data}, nil
}

// Router dispatches on the URL scheme. Bare paths use the "file" entry.
type Router map[string]Fetcher

func (r Router) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	scheme := "file"
	if i := strings.Index(rawURL, "://"); i > 0 {
		scheme = strings.ToLower(rawURL[:i])
	}
	f, ok := r[scheme]
	if !ok {
		return nil, fmt.Errorf("%q: %w", scheme, ErrUnsupportedScheme)
	}
	return f.Fetch(ctx, rawURL)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (*Asset, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	return f(ctx, rawURL)
}
