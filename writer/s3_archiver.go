package writer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "triflow/config"
	"triflow/logger"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads closed audit files to a bucket.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
	log    *logger.Entry
}

// NewS3Archiver loads AWS configuration, preferring static credentials from
// cfg when both halves are present.
func NewS3Archiver(ctx context.Context, cfg appconfig.S3Config) (*S3Archiver, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		log:    logger.GetLogger().WithComponent("s3_archiver"),
	}
}

// objectKey places the file under prefix/YYYY/MM/DD with an upload timestamp
// so repeated runs never overwrite each other.
func (a *S3Archiver) objectKey(file string, at time.Time) string {
	at = at.UTC()
	name := filepath.Base(file)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	key := path.Join(at.Format("2006/01/02"), fmt.Sprintf("%s-%s%s", stem, at.Format("20060102T150405Z"), ext))
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

// Archive uploads file. A missing or empty file is skipped.
func (a *S3Archiver) Archive(ctx context.Context, file string) error {
	info, err := os.Stat(file)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0) {
		a.log.WithFields(logger.Fields{"file": file}).Debug("nothing to archive")
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	key := a.objectKey(file, a.now())
	start := time.Now()
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("text/csv"),
	}); err != nil {
		return fmt.Errorf("upload %s to s3://%s/%s: %w", file, a.bucket, key, err)
	}
	logger.LogPerformanceEntry(a.log, "s3_archiver", "put_object", time.Since(start), logger.Fields{
		"bucket": a.bucket,
		"key":    key,
		"bytes":  info.Size(),
	})
	a.log.WithFields(logger.Fields{"bucket": a.bucket, "key": key}).Info("audit file archived")
	return nil
}
