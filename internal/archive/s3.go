// Package archive keeps a copy of every emailed report in object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	applog "expensetracker/internal/log"
)

const keyTimeLayout = "20060102T150405Z"

// Uploader is the subset of manager.Uploader the archive needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive uploads report PDFs under reports/<user_id>/.
type S3Archive struct {
	uploader Uploader
	bucket   string
	now      func() time.Time
}

func NewS3Archive(uploader Uploader, bucket string) *S3Archive {
	return &S3Archive{
		uploader: uploader,
		bucket:   bucket,
		now:      time.Now,
	}
}

// NewFromConfig builds an archive for bucket using the default AWS credential chain.
func NewFromConfig(ctx context.Context, region, bucket string) (*S3Archive, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Archive(manager.NewUploader(s3.NewFromConfig(cfg)), bucket), nil
}

// Key returns the object key for a report generated at t.
func Key(userID int64, t time.Time) string {
	return "reports/" + strconv.FormatInt(userID, 10) + "/" + t.UTC().Format(keyTimeLayout) + ".pdf"
}

// Store uploads pdf and returns its s3:// location.
func (a *S3Archive) Store(ctx context.Context, userID int64, pdf []byte) (string, error) {
	if a.bucket == "" {
		return "", fmt.Errorf("archive bucket is required")
	}
	key := Key(userID, a.now())

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pdf),
		ContentType: aws.String("application/pdf"),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	applog.FromContext(ctx).WithComponent(applog.ComponentArchive).InfoContext(ctx, "Report archived",
		applog.FieldUserID, userID,
		"location", location,
		"bytes", len(pdf))
	return location, nil
}
