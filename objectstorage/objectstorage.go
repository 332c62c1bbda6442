// Package objectstorage archives generated reports in an S3 compatible
// bucket.
package objectstorage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.vocdoni.io/dvote/log"
)

var (
	// ErrorInvalidObjectPrefix is returned when the key prefix contains
	// characters outside of the allowed set.
	ErrorInvalidObjectPrefix = fmt.Errorf("invalid object prefix")
	// ErrorFileTypeNotSupported is returned when the file type is not in the supported types list.
	ErrorFileTypeNotSupported = fmt.Errorf("file type not supported")
	// ErrorEmptyObject is returned when there is nothing to upload.
	ErrorEmptyObject = fmt.Errorf("empty object")
)

// ObjectFileType represents the MIME type of a stored object file.
type ObjectFileType string

const (
	// FileTypeJSON represents the JSON MIME type.
	FileTypeJSON ObjectFileType = "application/json"
	// FileTypeCSV represents the CSV MIME type.
	FileTypeCSV ObjectFileType = "text/csv"
	// FileTypeText represents the plain text MIME type.
	FileTypeText ObjectFileType = "text/plain"
)

var fileExtensions = map[ObjectFileType]string{
	FileTypeJSON: "json",
	FileTypeCSV:  "csv",
	FileTypeText: "txt",
}

var isObjectPrefixRgx = regexp.MustCompile(`^[a-zA-Z0-9_\-/]*$`)

// Uploader is the part of the S3 upload manager used by the client.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Config holds the configuration for the object storage client. Endpoint is
// only needed for S3 compatible services other than AWS, and the static keys
// only when the default credential chain should not be used. PublicURL, when
// set, is the base of the returned object URLs.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

// Client uploads objects under content derived keys. Recently uploaded keys
// are kept in an LRU cache so identical content is not uploaded twice.
type Client struct {
	uploader  Uploader
	bucket    string
	publicURL string
	cache     *lru.Cache[string, string]
}

// New initializes a client for the configured bucket.
func New(ctx context.Context, conf *Config) (*Client, error) {
	if conf == nil || conf.Bucket == "" {
		return nil, fmt.Errorf("invalid object storage configuration")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if conf.Region != "" {
		opts = append(opts, awsconfig.WithRegion(conf.Region))
	}
	if conf.AccessKey != "" && conf.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot load aws configuration: %w", err)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithUploader(manager.NewUploader(s3Client), conf.Bucket, conf.PublicURL)
}

// NewWithUploader creates a client on top of an existing uploader.
func NewWithUploader(uploader Uploader, bucket, publicURL string) (*Client, error) {
	cache, err := lru.New[string, string](256)
	if err != nil {
		return nil, fmt.Errorf("cannot create cache: %w", err)
	}
	return &Client{
		uploader:  uploader,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		cache:     cache,
	}, nil
}

// Put uploads data under prefix/<id>.<ext>, where id is derived from the
// content, and returns the URL of the object.
func (osc *Client) Put(ctx context.Context, prefix string, data []byte, fileType ObjectFileType) (string, error) {
	if len(data) == 0 {
		return "", ErrorEmptyObject
	}
	ext, ok := fileExtensions[fileType]
	if !ok {
		return "", ErrorFileTypeNotSupported
	}
	if !isObjectPrefixRgx.MatchString(prefix) || strings.Contains(prefix, "//") {
		return "", ErrorInvalidObjectPrefix
	}
	key := fmt.Sprintf("%s.%s", calculateObjectID(data), ext)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	if url, ok := osc.cache.Get(key); ok {
		return url, nil
	}

	out, err := osc.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(osc.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(string(fileType)),
	})
	if err != nil {
		return "", fmt.Errorf("cannot upload object %s: %w", key, err)
	}
	url := osc.objectURL(key, out)
	osc.cache.Add(key, url)
	log.Debugf("object %s uploaded to bucket %s", key, osc.bucket)
	return url, nil
}

func (osc *Client) objectURL(key string, out *manager.UploadOutput) string {
	if osc.publicURL != "" {
		return osc.publicURL + "/" + key
	}
	if out != nil && out.Location != "" {
		return out.Location
	}
	return fmt.Sprintf("s3://%s/%s", osc.bucket, key)
}

// calculateObjectID returns the hex encoded first 12 bytes of the md5 hash
// of the data.
func calculateObjectID(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:12])
}
