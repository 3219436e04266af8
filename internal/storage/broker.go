// Package storage issues time-boxed upload credentials against an
// S3-compatible object store. Clients upload media directly with the
// presigned URL; the service never touches raw bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/yapchat/backend/internal/config"
)

var (
	// ErrUnsupportedMedia indicates the content type is outside the
	// category's allow-list.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrMediaTooLarge indicates the declared size exceeds the category's
	// ceiling.
	ErrMediaTooLarge = errors.New("media exceeds maximum size")
	// ErrUnknownBucket indicates the requested bucket alias is not configured.
	ErrUnknownBucket = errors.New("unknown bucket")
)

// Media categories accepted for upload credentials.
const (
	CategoryImage = "image"
	CategoryAudio = "audio"
)

// Seams over the presign client so tests can run without an object store.
var presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return pc.PresignPutObject(ctx, in, optFns...)
}

// UploadCredential is a short-lived, create/write-scoped permission for one
// object. UploadURL receives the client's PUT; PublicURL is recorded on the
// message or profile after the upload completes out-of-band.
type UploadCredential struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Path      string `json:"path"`
}

type allowList struct {
	mimes    []string
	maxBytes int64
}

// Broker issues presigned upload credentials scoped to the profile and
// message buckets.
type Broker struct {
	presigner     *s3.PresignClient
	profileBucket string
	messageBucket string
	publicBaseURL string
	uploadTTL     time.Duration
	allowLists    map[string]allowList
}

// NewBroker configures a credential broker targeting the provided object store.
func NewBroker(ctx context.Context, cfg config.ObjectStoreConfig, maxImageMB, maxAudioMB int, uploadTTL time.Duration) (*Broker, error) {
	if strings.TrimSpace(cfg.ProfileBucket) == "" || strings.TrimSpace(cfg.MessageBucket) == "" {
		return nil, fmt.Errorf("storage broker: profile and message buckets are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Broker{
		presigner:     s3.NewPresignClient(client),
		profileBucket: cfg.ProfileBucket,
		messageBucket: cfg.MessageBucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		uploadTTL:     uploadTTL,
		allowLists: map[string]allowList{
			CategoryImage: {
				mimes:    []string{"image/jpeg", "image/png"},
				maxBytes: int64(maxImageMB) * 1024 * 1024,
			},
			CategoryAudio: {
				mimes:    []string{"audio/webm", "audio/mpeg"},
				maxBytes: int64(maxAudioMB) * 1024 * 1024,
			},
		},
	}, nil
}

// ProfileUpload issues a credential for a user's profile image. The object
// key is stable per user so a re-upload replaces the previous image.
func (b *Broker) ProfileUpload(ctx context.Context, userID, contentType string, sizeBytes int64) (UploadCredential, error) {
	if err := b.validate(CategoryImage, contentType, sizeBytes); err != nil {
		return UploadCredential{}, err
	}
	key := fmt.Sprintf("%s.%s", userID, extensionFor(contentType))
	return b.presign(ctx, b.profileBucket, key, contentType)
}

// MessageUpload issues a credential for a message attachment, keyed under the
// yap so transcript media stays grouped per conversation.
func (b *Broker) MessageUpload(ctx context.Context, yapID, contentType string, sizeBytes int64, category string) (UploadCredential, error) {
	if err := b.validate(category, contentType, sizeBytes); err != nil {
		return UploadCredential{}, err
	}
	key := fmt.Sprintf("%s/%s.%s", yapID, uuid.NewString(), extensionFor(contentType))
	return b.presign(ctx, b.messageBucket, key, contentType)
}

// GenericUpload issues a credential for an arbitrary object in one of the
// configured buckets. The category allow-list is applied when provided.
func (b *Broker) GenericUpload(ctx context.Context, bucketAlias, objectName, contentType string, sizeBytes int64, category string) (UploadCredential, error) {
	bucket, err := b.bucketFor(bucketAlias)
	if err != nil {
		return UploadCredential{}, err
	}
	if category != "" {
		if err := b.validate(category, contentType, sizeBytes); err != nil {
			return UploadCredential{}, err
		}
	}
	return b.presign(ctx, bucket, strings.TrimLeft(objectName, "/"), contentType)
}

// Bucket aliases accepted by GenericUpload.
const (
	BucketProfiles = "profiles"
	BucketMessages = "messages"
)

func (b *Broker) bucketFor(alias string) (string, error) {
	switch alias {
	case BucketProfiles:
		return b.profileBucket, nil
	case BucketMessages:
		return b.messageBucket, nil
	default:
		return "", ErrUnknownBucket
	}
}

func (b *Broker) validate(category, contentType string, sizeBytes int64) error {
	rules, ok := b.allowLists[category]
	if !ok {
		return ErrUnsupportedMedia
	}
	if contentType != "" {
		allowed := false
		for _, mime := range rules.mimes {
			if mime == contentType {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrUnsupportedMedia
		}
	}
	if sizeBytes > 0 && sizeBytes > rules.maxBytes {
		return ErrMediaTooLarge
	}
	return nil
}

func (b *Broker) presign(ctx context.Context, bucket, key, contentType string) (UploadCredential, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(b.presigner, ctx, input, func(o *s3.PresignOptions) {
		o.Expires = b.uploadTTL
	})
	if err != nil {
		return UploadCredential{}, fmt.Errorf("presign put %s/%s: %w", bucket, key, err)
	}

	return UploadCredential{
		UploadURL: req.URL,
		PublicURL: b.publicURL(bucket, key),
		Path:      fmt.Sprintf("%s/%s", bucket, key),
	}, nil
}

func (b *Broker) publicURL(bucket, key string) string {
	if b.publicBaseURL == "" {
		return fmt.Sprintf("%s/%s", bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, bucket, key)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "audio/mpeg":
		return "mp3"
	case "audio/webm":
		return "webm"
	default:
		return "jpg"
	}
}
