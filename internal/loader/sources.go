package loader

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/config"
)

// NewRouter builds the fetchers enabled by cfg. http and https are always
// available; file:// needs a root and s3:// a region or endpoint.
func NewRouter(cfg config.SourcesConfig) (Router, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	r := Router{
		"http":  &HTTPFetcher{Client: client, MaxBytes: cfg.MaxBytes},
		"https": &HTTPFetcher{Client: client, MaxBytes: cfg.MaxBytes},
	}
	if cfg.FileRoot != "" {
		r["file"] = &FileFetcher{Root: cfg.FileRoot, MaxBytes: cfg.MaxBytes}
	}
	if cfg.S3.Enabled() {
		s3f, err := NewS3Fetcher(S3Config{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		s3f.MaxBytes = cfg.MaxBytes
		r["s3"] = s3f
	}
	return r, nil
}

// FromConfig returns a Loader over the sources enabled by cfg.
func FromConfig(cfg config.SourcesConfig, log *zap.Logger) (*Loader, error) {
	r, err := NewRouter(cfg)
	if err != nil {
		return nil, err
	}
	if log != nil {
		schemes := make([]string, 0, len(r))
		for s := range r {
			schemes = append(schemes, s)
		}
		log.Debug("asset sources", zap.Strings("schemes", schemes))
	}
	opts := []Option{WithFetchTimeout(cfg.FetchTimeout)}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	return New(r, opts...), nil
}
