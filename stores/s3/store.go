// Package s3 implements a Store over Amazon S3 or an S3-compatible endpoint.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/sennajox/journaltool/stores"
)

func init() { stores.RegisterProvider("s3", New) }

// StoreQueryArgs contains fields parsed from the query arguments of an
// s3:// store URL.
type StoreQueryArgs struct {
	// AWS Profile to extract credentials from the shared credentials file.
	// If empty, the default credentials are used.
	Profile string
	// Endpoint to connect to S3. If empty, the default S3 service is used.
	Endpoint string
	// SSE is the server-side encryption type to be applied (eg, "AES256").
	SSE string
	// Region of the bucket. If empty, the region is determined from
	// |Profile| or the default credentials.
	Region string
}

type store struct {
	bucket string
	prefix string
	args   StoreQueryArgs
	client *s3.S3
}

// New creates an S3 Store from the provided URL.
func New(ep *url.URL) (stores.Store, error) {
	var args StoreQueryArgs
	if err := parseStoreArgs(ep, &args); err != nil {
		return nil, err
	}
	var bucket, prefix = ep.Host, strings.TrimPrefix(ep.Path, "/")

	var awsConfig = aws.NewConfig()
	awsConfig.WithCredentialsChainVerboseErrors(true)

	if args.Region != "" {
		awsConfig.WithRegion(args.Region)
	}
	if args.Endpoint != "" {
		awsConfig.WithEndpoint(args.Endpoint)
		// Bucket-named virtual hosts are not compatible with explicit endpoints.
		awsConfig.WithS3ForcePathStyle(true)
	}

	awsSession, err := session.NewSessionWithOptions(session.Options{
		Profile: args.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing S3 session: %s", err)
	}
	if awsSession.Config.Region == nil || *awsSession.Config.Region == "" {
		if args.Region == "" {
			return nil, fmt.Errorf("missing AWS region configuration for profile %q", args.Profile)
		}
	}

	log.WithFields(log.Fields{
		"endpoint": args.Endpoint,
		"profile":  args.Profile,
		"bucket":   bucket,
	}).Info("constructed new aws.Session")

	return &store{
		bucket: bucket,
		prefix: prefix,
		args:   args,
		client: s3.New(awsSession, awsConfig),
	}, nil
}

func (s *store) Provider() string { return "s3" }

func (s *store) key(name string) *string { return aws.String(s.prefix + name) }

func (s *store) Read(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	var byteRange = fmt.Sprintf("bytes=%d-", offset)
	if length >= 0 {
		byteRange = fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	}
	var getObj = s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(name),
		Range:  aws.String(byteRange),
	}
	var resp, err = s.client.GetObjectWithContext(ctx, &getObj)
	if err != nil {
		if awsErr, ok := err.(awserr.RequestFailure); ok {
			switch awsErr.StatusCode() {
			case http.StatusNotFound:
				return nil, stores.ErrNotFound
			case http.StatusRequestedRangeNotSatisfiable:
				return nil, nil // Read begins beyond the object's size.
			}
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Write is read-modify-write of the whole object: journal strides are small
// fixed-size objects, and S3 offers no partial object update.
func (s *store) Write(ctx context.Context, name string, offset int64, data []byte) error {
	var content, err = s.Read(ctx, name, 0, maxObjectSize)
	if err == stores.ErrNotFound {
		content, err = nil, nil
	}
	if err != nil {
		return err
	}
	content = stores.Patch(content, offset, data)

	var putObj = s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(name),
		Body:   bytes.NewReader(content),
	}
	if s.args.SSE != "" {
		putObj.ServerSideEncryption = aws.String(s.args.SSE)
	}
	_, err = s.client.PutObjectWithContext(ctx, &putObj)
	return err
}

func (s *store) Stat(ctx context.Context, name string) (int64, error) {
	var headObj = s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(name),
	}
	var resp, err = s.client.HeadObjectWithContext(ctx, &headObj)
	if err != nil {
		if awsErr, ok := err.(awserr.RequestFailure); ok && awsErr.StatusCode() == http.StatusNotFound {
			return 0, stores.ErrNotFound
		}
		return 0, err
	}
	return aws.Int64Value(resp.ContentLength), nil
}

func (s *store) Remove(ctx context.Context, name string) error {
	if _, err := s.Stat(ctx, name); err != nil {
		return err
	}
	var deleteObj = s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(name),
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &deleteObj)
	return err
}

func (s *store) List(ctx context.Context, prefix string, callback func(name string) error) error {
	prefix = s.prefix + prefix
	var q = s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	var listErr error
	err := s.client.ListObjectsV2PagesWithContext(ctx, &q, func(objs *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range objs.Contents {
			if strings.HasSuffix(*obj.Key, "/") {
				continue // Ignore directory-like objects.
			}
			if err := callback(strings.TrimPrefix(*obj.Key, prefix)); err != nil {
				listErr = err
				return false // Stop pagination.
			}
		}
		return true
	})
	if listErr != nil {
		return listErr
	}
	return err
}

func parseStoreArgs(ep *url.URL, args interface{}) error {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	if q, err := url.ParseQuery(ep.RawQuery); err != nil {
		return err
	} else if err = decoder.Decode(args, q); err != nil {
		return fmt.Errorf("parsing store URL arguments: %s", err)
	}
	return nil
}

// maxObjectSize bounds whole-object reads used by read-modify-write.
// Journal strides are at most a few MiB.
const maxObjectSize = 64 << 20
