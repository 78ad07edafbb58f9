// Package archivemirror best-effort mirrors newly-saved archives to S3 for
// off-site durability. The database-backed Archive table (spec.md §4.5)
// remains the system of record; a mirror failure never fails ingestion.
package archivemirror

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Mirror uploads an archive's compressed payload to S3, keyed by its
// content hash:
//
//	s3://<bucket>/<prefix>/archives/<hash[0:2]>/<hash>.gz
type Mirror struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// New constructs a Mirror. Region/credentials come from the standard AWS
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET, ...).
func New(ctx context.Context, bucket, prefix string) (*Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archivemirror: bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("archivemirror: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Mirror{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// objectKey shards by the first two hex characters of the hash to avoid a
// single hot S3 prefix.
func (m *Mirror) objectKey(hash string) string {
	shard := hash
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(m.prefix, "archives", shard, hash+".gz")
}

// Upload best-effort mirrors a compressed archive payload. Failures are
// logged, never returned as a hard error to the caller — mirroring is
// additive and must never block or fail ingestion (§ DOMAIN STACK).
func (m *Mirror) Upload(ctx context.Context, hash string, compressedPayload []byte) {
	if m == nil {
		return
	}
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(m.bucket),
		Key:                  aws.String(m.objectKey(hash)),
		Body:                 bytes.NewReader(compressedPayload),
		ContentType:          aws.String("application/gzip"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		log.Printf("[archivemirror] upload %s failed: %v", hash, err)
	}
}

// Fetch retrieves a mirrored archive's compressed payload. The ruminate
// recovery path does not call it; it re-enqueues from the archive table only.
func (m *Mirror) Fetch(ctx context.Context, hash string) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("archivemirror: not configured")
	}
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.objectKey(hash)),
	})
	if err != nil {
		return nil, fmt.Errorf("archivemirror: fetch %s: %w", hash, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("archivemirror: read %s: %w", hash, err)
	}
	return buf.Bytes(), nil
}
