// Package archive exports canonical channel documents to S3-compatible
// object storage and hands out presigned download links for them.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/relaycore/channel-console/internal/model"
)

// ErrNotFound is returned when a channel has no export yet.
var ErrNotFound = errors.New("export not found")

// objectAPI is the part of the S3 client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configure the S3 connection.
type Options struct {
	Endpoint  string // empty for AWS
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Archive writes channel exports into one bucket.
type Archive struct {
	objects objectAPI
	presign presignAPI
	bucket  string
}

// Export describes one uploaded document.
type Export struct {
	Key       string `json:"key"`
	LatestKey string `json:"latestKey"`
	Checksum  string `json:"checksum"` // hex SHA-256 of the body
	Size      int64  `json:"size"`
}

// New creates an Archive. It supports both AWS S3 and S3-compatible services
// like MinIO.
func New(ctx context.Context, opts Options) (*Archive, error) {
	if opts.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(opts.Endpoint))
	}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     opts.AccessKey,
					SecretAccessKey: opts.SecretKey,
				}, nil
			})))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})
	return &Archive{objects: client, presign: s3.NewPresignClient(client), bucket: opts.Bucket}, nil
}

// RevisionKey is the object key of one channel revision.
func RevisionKey(channelID string, revision int64) string {
	return fmt.Sprintf("channels/%s/%d.json", channelID, revision)
}

// LatestKey is the object key of the newest export of a channel.
func LatestKey(channelID string) string {
	return fmt.Sprintf("channels/%s/latest.json", channelID)
}

// ExportChannel uploads c under its revision key and as the channel's latest export.
func (a *Archive) ExportChannel(ctx context.Context, c *model.Channel) (*Export, error) {
	if c == nil || c.ID == "" {
		return nil, errors.New("channel id is required")
	}
	body, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode channel: %w", err)
	}
	sum := sha256.Sum256(body)
	exp := &Export{
		Key:       RevisionKey(c.ID, int64(c.Revision)),
		LatestKey: LatestKey(c.ID),
		Checksum:  hex.EncodeToString(sum[:]),
		Size:      int64(len(body)),
	}

	meta := map[string]string{
		"channel-name": c.Name,
		"revision":     strconv.FormatInt(int64(c.Revision), 10),
		"sha256":       exp.Checksum,
	}
	for _, key := range []string{exp.Key, exp.LatestKey} {
		_, err := a.objects.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(a.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentType:   aws.String("application/json"),
			ContentLength: aws.Int64(exp.Size),
			Metadata:      meta,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}
	return exp, nil
}

// ExportURL returns a presigned GET URL for the latest export of a channel.
func (a *Archive) ExportURL(ctx context.Context, channelID string, expires time.Duration) (string, error) {
	key := LatestKey(channelID)
	_, err := a.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get object metadata: %w", err)
	}

	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}
