package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the slice of the S3 client the photo uploader uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// photoUploader stores meal photos in S3 and returns their public URL.
type photoUploader struct {
	client  objectPutter
	bucket  string
	baseURL string // public prefix, e.g. a CloudFront distribution
	now     func() time.Time
}

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// Upload stores a data-URI photo under meal-photos/<user>/ and returns its URL.
// Values that are already URLs are returned unchanged.
func (u *photoUploader) Upload(ctx context.Context, userID, photo string) (string, error) {
	if strings.HasPrefix(photo, "http://") || strings.HasPrefix(photo, "https://") {
		return photo, nil
	}
	contentType, data, err := decodeDataURI(photo)
	if err != nil {
		return "", err
	}
	ext, ok := photoExtensions[contentType]
	if !ok {
		ext = "." + strings.TrimPrefix(contentType, "image/")
	}

	key := fmt.Sprintf("meal-photos/%s/%d%s", userID, u.now().UnixNano(), ext)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo to s3: %w", err)
	}
	return strings.TrimRight(u.baseURL, "/") + "/" + key, nil
}
