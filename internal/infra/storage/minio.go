package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

// Bucket serves the rules corpus from a MinIO/S3 bucket prefix.
type Bucket struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, prefix, accessKey, secretKey string, useSSL bool) (*Bucket, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}
	return &Bucket{client: cli, bucketName: bucket, prefix: strings.TrimLeft(prefix, "/")}, nil
}

// Documents downloads and parses every ingestible object under the prefix.
func (b *Bucket) Documents(ctx context.Context) ([]knowledge.Document, error) {
	var keys []string
	for obj := range b.client.ListObjects(ctx, b.bucketName, minio.ListObjectsOptions{Prefix: b.prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", b.bucketName, b.prefix, obj.Err)
		}
		if Supported(obj.Key) {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)

	docs := make([]knowledge.Document, 0, len(keys))
	for _, key := range keys {
		data, err := b.read(ctx, key)
		if err != nil {
			return nil, err
		}
		text, err := extractText(ctx, key, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, knowledge.Document{Name: path.Base(key), Content: text})
	}
	return docs, nil
}

func (b *Bucket) read(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Upload puts a local document under the bucket prefix and returns its key.
func (b *Bucket) Upload(ctx context.Context, localPath string) (string, error) {
	key := path.Join(b.prefix, path.Base(strings.ReplaceAll(localPath, "\\", "/")))
	_, err := b.client.FPutObject(ctx, b.bucketName, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Ping checks that the bucket is reachable.
func (b *Bucket) Ping(ctx context.Context) error {
	_, err := b.client.BucketExists(ctx, b.bucketName)
	return err
}
