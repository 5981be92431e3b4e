// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package s3site serves update sites from an S3 compatible bucket.
//
//	s3://bucket/prefix?region=eu-west-1&endpoint=http://minio:9000
package s3site

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

func init() {
	remote.Register("s3", New)
}

// 📍 Location is a parsed s3:// site URL
type Location struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // empty for AWS itself
}

// 🔍 ParseLocation reads bucket, prefix and connection settings from an s3:// URL
func ParseLocation(u *url.URL) (Location, error) {
	if u.Scheme != "s3" {
		return Location{}, errors.Errorf("not an s3 url: %s", u.String())
	}
	if u.Host == "" {
		return Location{}, errors.Errorf("s3 url %q has no bucket", u.String())
	}
	q := u.Query()
	region := q.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	return Location{
		Bucket:   u.Host,
		Prefix:   strings.Trim(u.Path, "/"),
		Region:   region,
		Endpoint: q.Get("endpoint"),
	}, nil
}

// Key maps a site object key into the bucket
func (l Location) Key(key string) string {
	if l.Prefix == "" {
		return key
	}
	return path.Join(l.Prefix, key)
}

// 🪣 Store keeps site objects in a bucket
type Store struct {
	client *s3.Client
	loc    Location
}

var (
	_ remote.Store         = (*Store)(nil)
	_ remote.Authenticator = (*Store)(nil)
)

// 🏭 New creates a store for an s3:// site. Username/Password credentials are used as a static
// access key pair, otherwise the default AWS credential chain applies.
func New(ctx context.Context, location *url.URL, creds *remote.Credentials, opts remote.Options) (remote.Store, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(loc.Region),
	}
	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(opts.HTTPClient))
	}
	if loc.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               loc.Endpoint,
					HostnameImmutable: true,
				}, nil
			},
		)
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}
	if creds != nil && creds.Username != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.Username, creds.Password, creds.Token),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = loc.Endpoint != ""
	})

	return &Store{client: client, loc: loc}, nil
}

// 📥 Get downloads key from the bucket
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.loc.Bucket),
		Key:    aws.String(s.loc.Key(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, 0, errors.Errorf("%s: %w", key, remote.ErrNotFound)
		}
		return nil, 0, errors.Errorf("getting object %s: %w", key, err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// 📤 Put uploads key to the bucket
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.loc.Bucket),
		Key:    aws.String(s.loc.Key(key)),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.Errorf("putting object %s: %w", key, err)
	}
	zerolog.Ctx(ctx).Debug().Str("bucket", s.loc.Bucket).Str("key", s.loc.Key(key)).Int64("size", size).Msg("put object")
	return nil
}

// 🔐 Authenticate checks the bucket is reachable with the configured credentials
func (s *Store) Authenticate(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.loc.Bucket),
	})
	if err != nil {
		return errors.Errorf("checking bucket %s: %w", s.loc.Bucket, errors.Join(remote.ErrAuth, err))
	}
	return nil
}
