package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// maxDeleteBatch is the most keys a DeleteObjects request accepts.
const maxDeleteBatch = 1000

// S3Options configures the S3 backend. Credentials come from the default chain.
type S3Options struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// NewS3API builds an S3 client from the shared AWS session.
func NewS3API(opts S3Options) (s3iface.S3API, error) {
	cfg := aws.NewConfig()
	if opts.Region != "" {
		cfg = cfg.WithRegion(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint)
	}
	cfg = cfg.WithS3ForcePathStyle(opts.ForcePathStyle)
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return s3.New(sess), nil
}

// S3Store keeps the mirror in a bucket. Keys are used verbatim as object keys, so
// the layout root doubles as the key prefix.
type S3Store struct {
	api    s3iface.S3API
	bucket string
	logger *slog.Logger
}

func NewS3Store(api s3iface.S3API, bucket string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{api: api, bucket: bucket, logger: logger}
}

func (s *S3Store) Name() string { return "s3://" + s.bucket }

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
}

// Put relies on S3 single-request PUT being atomic.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var names []string
	err := s.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			names = append(names, path.Base(aws.StringValue(obj.Key)))
		}
		return true
	})
	if err != nil {
		return names, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
	}
	return names, nil
}

// Delete issues one DeleteObjects request per chunk of maxDeleteBatch keys. A failed
// request fails its whole chunk; later chunks are still attempted.
func (s *S3Store) Delete(ctx context.Context, keys []string) DeleteReport {
	var rep DeleteReport
	for start := 0; start < len(keys); start += maxDeleteBatch {
		chunk := keys[start:min(start+maxDeleteBatch, len(keys))]
		objs := make([]*s3.ObjectIdentifier, len(chunk))
		for i, k := range chunk {
			objs[i] = &s3.ObjectIdentifier{Key: aws.String(k)}
		}
		out, err := s.api.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: objs, Quiet: aws.Bool(false)},
		})
		if err != nil {
			s.logger.Error("s3 batch delete failed", "bucket", s.bucket, "keys", len(chunk), "error", err)
			for _, k := range chunk {
				rep.Failures = append(rep.Failures, deleteFailure(k, err))
			}
			continue
		}
		for _, e := range out.Errors {
			key := aws.StringValue(e.Key)
			s.logger.Error("s3 delete failed", "key", key, "code", aws.StringValue(e.Code))
			rep.Failures = append(rep.Failures, deleteFailure(key,
				fmt.Errorf("%s: %s", aws.StringValue(e.Code), aws.StringValue(e.Message))))
		}
		rep.Deleted += len(out.Deleted)
		s.logger.Debug("s3 batch deleted", "bucket", s.bucket, "deleted", len(out.Deleted), "errors", len(out.Errors))
	}
	return rep
}

func isNotFound(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return true
	}
	var ae awserr.Error
	if errors.As(err, &ae) {
		switch ae.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}
