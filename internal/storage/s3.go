package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/evident-labs/evidcore/internal/errs"
)

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // custom endpoint for MinIO/LocalStack
	Prefix   string
}

// S3 is an S3-compatible Backend. Keys map directly to object keys under
// Prefix. Atomicity comes from S3's own PUT semantics (a PUT either fully
// succeeds or fully fails); immutability comes from a HEAD check before
// each PUT, which refuses a key that already exists.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds an S3-backed Backend, honoring a custom endpoint for
// S3-compatible stores (MinIO, LocalStack).
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "load aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *S3) key(key string) string {
	return s.prefix + strings.TrimPrefix(key, "/")
}

func (s *S3) headExists(ctx context.Context, objKey string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

func (s *S3) Put(key string, data []byte, expectedSHA256 string) (PutResult, error) {
	return s.PutStream(key, bytes.NewReader(data), expectedSHA256)
}

func (s *S3) PutStream(key string, r io.Reader, expectedSHA256 string) (PutResult, error) {
	ctx := context.Background()
	objKey := s.key(key)

	data, err := io.ReadAll(r)
	if err != nil {
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "read input", err)
	}
	h := sha256.Sum256(data)
	actual := hex.EncodeToString(h[:])

	if expectedSHA256 != "" && actual != expectedSHA256 {
		return PutResult{}, errs.New(errs.KindIntegrityMismatch,
			"expected "+expectedSHA256+", got "+actual)
	}

	exists, err := s.headExists(ctx, objKey)
	if err != nil {
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "head object", err)
	}
	if exists {
		return PutResult{}, errs.New(errs.KindKeyExists, key)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "put object", err)
	}

	return PutResult{Key: key, SHA256: actual, SizeBytes: int64(len(data))}, nil
}

func (s *S3) Get(key string) (GetResult, error) {
	ctx := context.Background()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return GetResult{}, errs.New(errs.KindNotFound, key)
		}
		return GetResult{}, errs.Wrap(errs.KindStoreUnavailable, "get object", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return GetResult{}, errs.Wrap(errs.KindStoreUnavailable, "read object body", err)
	}
	sum := sha256.Sum256(data)
	return GetResult{Data: data, SHA256: hex.EncodeToString(sum[:]), SizeBytes: int64(len(data))}, nil
}

func (s *S3) GetStream(key string) (io.ReadCloser, error) {
	ctx := context.Background()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errs.New(errs.KindNotFound, key)
		}
		return nil, errs.Wrap(errs.KindStoreUnavailable, "get object", err)
	}
	return out.Body, nil
}

func (s *S3) Exists(key string) (bool, error) {
	ctx := context.Background()
	exists, err := s.headExists(ctx, s.key(key))
	if err != nil {
		return false, errs.Wrap(errs.KindStoreUnavailable, "head object", err)
	}
	return exists, nil
}

// Delete exists for administrative cleanup only.
func (s *S3) Delete(key string) (bool, error) {
	ctx := context.Background()
	objKey := s.key(key)
	exists, err := s.headExists(ctx, objKey)
	if err != nil {
		return false, errs.Wrap(errs.KindStoreUnavailable, "head object", err)
	}
	if !exists {
		return false, nil
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return false, errs.Wrap(errs.KindStoreUnavailable, "delete object", err)
	}
	return true, nil
}

func (s *S3) ListKeys(prefix string) ([]string, error) {
	ctx := context.Background()
	var keys []string
	var token *string
	listPrefix := s.key(prefix)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(listPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errs.Wrap(errs.KindStoreUnavailable, "list objects", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

func (s *S3) Size(key string) (int64, bool, error) {
	ctx := context.Background()
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, false, nil
		}
		return 0, false, errs.Wrap(errs.KindStoreUnavailable, "head object", err)
	}
	return aws.ToInt64(out.ContentLength), true, nil
}
