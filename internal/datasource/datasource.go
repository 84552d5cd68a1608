// Package datasource resolves a source descriptor (HTTP(S) URL, local path,
// or literal CSV text) into fully buffered, UTF-8 decoded text.
package datasource

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"hringest/internal/datasource/file"
	"hringest/internal/datasource/httpds"
	"hringest/internal/errs"
	"hringest/internal/logging"
)

// Source is anything that can be opened as a byte stream.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Fetcher retrieves the body of an HTTP(S) URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Origin classifies a source descriptor.
type Origin string

const (
	OriginURL     Origin = "url"
	OriginPath    Origin = "path"
	OriginLiteral Origin = "literal"
)

// Classify reports how descriptor would be read.
func Classify(descriptor string) Origin {
	lower := strings.ToLower(descriptor)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return OriginURL
	}
	if !strings.ContainsAny(descriptor, "\n\r") && file.Exists(descriptor) {
		return OriginPath
	}
	return OriginLiteral
}

// Options configures a Reader.
type Options struct {
	// Timeout bounds an HTTP fetch. Default 30s.
	Timeout time.Duration
	// MaxBytes caps file and HTTP payloads. Zero means no cap.
	MaxBytes int64
	// Fetcher overrides the HTTP client.
	Fetcher Fetcher
	Logger  *zap.Logger
}

// Reader turns descriptors into text.
type Reader struct {
	fetcher  Fetcher
	maxBytes int64
	log      *zap.Logger
}

// NewReader returns a Reader. HTTP fetches are made once, without retries.
func NewReader(opts Options) *Reader {
	f := opts.Fetcher
	if f == nil {
		f = httpds.NewClient(httpds.Config{
			Timeout:      opts.Timeout,
			MaxBodyBytes: opts.MaxBytes,
		})
	}
	return &Reader{
		fetcher:  f,
		maxBytes: opts.MaxBytes,
		log:      logging.OrNop(opts.Logger).Named("datasource"),
	}
}

// Read returns the full decoded content named by descriptor.
func (r *Reader) Read(ctx context.Context, descriptor string) (string, error) {
	origin := Classify(descriptor)
	var (
		raw []byte
		err error
	)
	switch origin {
	case OriginURL:
		raw, err = r.fetcher.Fetch(ctx, descriptor)
		if err != nil {
			var sfe *errs.SourceFetchError
			if !errors.As(err, &sfe) {
				err = &errs.SourceFetchError{URL: descriptor, Err: err}
			}
			return "", err
		}
	case OriginPath:
		raw, err = file.NewLocal(descriptor, r.maxBytes).ReadAll(ctx)
		if err != nil {
			return "", &errs.SourceFetchError{URL: descriptor, Err: err}
		}
	default:
		raw = []byte(descriptor)
	}

	text, err := Decode(raw)
	if err != nil {
		return "", err
	}
	r.log.Debug("source read",
		zap.String(logging.FieldSource, string(origin)),
		zap.Int("bytes", len(raw)))
	return text, nil
}

// ReadFrom buffers and decodes an already-open stream, such as an upload.
func (r *Reader) ReadFrom(ctx context.Context, src io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.maxBytes > 0 {
		src = io.LimitReader(src, r.maxBytes+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return "", &errs.SourceFetchError{URL: "upload", Err: err}
	}
	if r.maxBytes > 0 && int64(len(raw)) > r.maxBytes {
		return "", &errs.SourceFetchError{URL: "upload", Err: errors.Newf("payload exceeds %d bytes", r.maxBytes)}
	}
	return Decode(raw)
}

// Decode converts b to UTF-8 text. A UTF-8 BOM is stripped, UTF-16 input
// with a BOM is transcoded, and invalid bytes become U+FFFD.
func Decode(b []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return "", errors.Wrap(err, "decode source")
	}
	return string(out), nil
}
