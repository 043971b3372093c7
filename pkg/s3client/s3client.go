// Package s3client archives liquidation divergence reports to S3. It is
// optional: the simulator runs without a sink configured.
package s3client

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type Client struct {
	s3     *s3.S3
	bucket string
}

func New(accessKey, secretKey, region, bucket string) (*Client, error) {
	if accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("s3client: access key, secret key and bucket are required")
	}
	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Region:      aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create aws session: %w", err)
	}
	return &Client{s3: s3.New(sess), bucket: bucket}, nil
}

// Put uploads one object; satisfies the simulator's report sink.
func (c *Client) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return err
}

// Get retrieves one object.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
