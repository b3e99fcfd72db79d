// Package objectstore puts image bytes in an Aliyun OSS bucket and returns
// their public URL.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"hotel_inventory/internal/adapters/observability"
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string // optional CDN or custom domain
	BasePath        string // optional prefix, e.g. "inventory/"
}

// bucket is the slice of *oss.Bucket the store uses.
type bucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	DeleteObject(objectKey string, options ...oss.Option) error
}

type OSS struct {
	bucket bucket
	cfg    Config
}

func New(cfg Config) (*OSS, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	b, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", cfg.Bucket, err)
	}
	return &OSS{bucket: b, cfg: cfg}, nil
}

func (o *OSS) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	err := o.bucket.PutObject(o.fullKey(key), body, oss.ContentType(contentType))
	observability.ObserveExternal("oss", "put_object", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return o.URL(key), nil
}

func (o *OSS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := o.bucket.DeleteObject(o.fullKey(key))
	observability.ObserveExternal("oss", "delete_object", statusOf(err), time.Since(start))
	return err
}

// URL is the public address of key.
func (o *OSS) URL(key string) string {
	full := o.fullKey(key)
	if o.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(o.cfg.PublicBaseURL, "/") + "/" + full
	}
	host := strings.TrimPrefix(strings.TrimPrefix(o.cfg.Endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", o.cfg.Bucket, host, full)
}

func (o *OSS) fullKey(key string) string {
	if o.cfg.BasePath == "" {
		return key
	}
	return path.Join(o.cfg.BasePath, key)
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	if se, ok := err.(oss.ServiceError); ok {
		return se.StatusCode
	}
	return 0
}
