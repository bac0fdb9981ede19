package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fotos/internal/filesystem"
)

// Source produces the raw bytes of the gallery database. size is -1 when
// unknown.
type Source interface {
	Fetch(ctx context.Context) (body io.ReadCloser, size int64, err error)
	// Kind labels metrics: "http", "file" or "s3".
	Kind() string
	String() string
}

// LoadError reports a failed or unsuccessful fetch of the database.
type LoadError struct {
	Source string
	// Status is the HTTP status for unsuccessful responses, 0 otherwise.
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("load %s: unexpected status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// HTTPSource downloads the database with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, 0, &LoadError{Source: s.URL, Err: err}
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &LoadError{Source: s.URL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &LoadError{Source: s.URL, Status: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

// Kind implements Source.
func (s *HTTPSource) Kind() string { return "http" }

func (s *HTTPSource) String() string { return s.URL }

// FileSource reads the database from a local or NFS-mounted path.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s *FileSource) Fetch(_ context.Context) (io.ReadCloser, int64, error) {
	f, err := filesystem.OpenWithRetry(s.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, 0, &LoadError{Source: s.Path, Err: err}
	}

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return f, size, nil
}

// Kind implements Source.
func (s *FileSource) Kind() string { return "file" }

func (s *FileSource) String() string { return s.Path }

// S3Source downloads the database object from an S3-compatible bucket.
type S3Source struct {
	Bucket string
	Key    string
	Client *s3.Client
}

// Fetch implements Source.
func (s *S3Source) Fetch(ctx context.Context) (io.ReadCloser, int64, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, 0, &LoadError{Source: s.String(), Err: err}
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// Kind implements Source.
func (s *S3Source) Kind() string { return "s3" }

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// SourceOptions configures the sources built by NewSource.
type SourceOptions struct {
	HTTPClient *http.Client
	// S3 settings. Empty keys fall back to the default AWS credential chain.
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// NewSource picks a Source from the scheme of uri: http(s):// downloads,
// s3://bucket/key reads from S3, anything else (including file://) is a
// local path.
func NewSource(ctx context.Context, uri string, opts SourceOptions) (Source, error) {
	if uri == "" {
		return nil, errors.New("database source is empty")
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return &FileSource{Path: uri}, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 2 * time.Minute}
		}
		return &HTTPSource{URL: uri, Client: client}, nil
	case "file":
		return &FileSource{Path: u.Path}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("invalid s3 source %q: want s3://bucket/key", uri)
		}
		client, err := newS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &S3Source{Bucket: u.Host, Key: key, Client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported database source scheme %q", u.Scheme)
	}
}

func newS3Client(ctx context.Context, opts SourceOptions) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
	}
	if opts.S3AccessKeyID != "" && opts.S3SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.S3AccessKeyID, opts.S3SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
