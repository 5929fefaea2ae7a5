//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of AssetETL.
//
// AssetETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// AssetETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with AssetETL. If not, see https://www.gnu.org/licenses/.

package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
)

// Kind names where a destination writes.
type Kind string

const (
	KindFD     Kind = "fd"
	KindFile   Kind = "file"
	KindS3     Kind = "s3"
	KindStdout Kind = "stdout"
)

// Destination is an opened output handle. Closing it honors the close policy
// of its kind: stdout is never closed, a caller-supplied handle only when
// export_fd_close is set.
type Destination struct {
	io.WriteCloser
	Kind     Kind
	Location string
	// Mode is "created" or "overwrote" for files.
	Mode string
}

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type openOptions struct {
	stdout   io.Writer
	s3Client PutObjectAPI
	s3Creds  aws.CredentialsProvider
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*openOptions)

// WithStdout replaces os.Stdout as the fallback destination.
func WithStdout(w io.Writer) Option {
	return func(o *openOptions) {
		o.stdout = w
	}
}

// WithS3Client sets the client used for S3 uploads instead of one built from
// the default AWS configuration.
func WithS3Client(client PutObjectAPI) Option {
	return func(o *openOptions) {
		o.s3Client = client
	}
}

// WithS3StaticCredentials uses fixed credentials for the default S3 client.
func WithS3StaticCredentials(accessKey, secretKey, session string) Option {
	return func(o *openOptions) {
		o.s3Creds = credentials.NewStaticCredentialsProvider(accessKey, secretKey, session)
	}
}

// WithLogger sets the logger that reports the opened destination.
func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) {
		o.logger = l
	}
}

// Open resolves the output handle for an export: a caller-supplied writer,
// then a file, then an S3 object, then stdout.
func Open(ctx context.Context, opts config.Export, options ...Option) (*Destination, error) {
	o := openOptions{stdout: os.Stdout, logger: slog.Default()}
	for _, opt := range options {
		opt(&o)
	}

	var (
		dest *Destination
		err  error
	)
	switch {
	case opts.FD != nil:
		dest = openFD(opts.FD, opts.FDClose)
	case opts.File != "":
		dest, err = openFile(opts)
	case opts.S3Bucket != "":
		dest, err = openS3(ctx, opts, o)
	default:
		dest = &Destination{WriteCloser: nopCloser{o.stdout}, Kind: KindStdout, Location: "stdout"}
	}
	if err != nil {
		return nil, err
	}
	o.logger.Info("exporting", "kind", dest.Kind, "location", dest.Location, "mode", dest.Mode)
	return dest, nil
}

func openFD(w io.Writer, closeIt bool) *Destination {
	dest := &Destination{Kind: KindFD, Location: fmt.Sprintf("%T", w)}
	if f, ok := w.(*os.File); ok {
		dest.Location = f.Name()
	}
	wc, isCloser := w.(io.WriteCloser)
	if closeIt && isCloser {
		dest.WriteCloser = wc
	} else {
		dest.WriteCloser = nopCloser{w}
	}
	return dest
}

// openFile creates the export directory (0700) and opens the export file
// (0600). Files opened here are always closed.
func openFile(opts config.Export) (*Destination, error) {
	dir := opts.Path
	if dir == "" {
		dir = config.DefaultExportPath
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve export path %q: %w", opts.Path, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create export path %q: %w", dir, err)
	}

	path := filepath.Join(dir, opts.File)
	mode := "created"
	if _, err := os.Stat(path); err == nil {
		if !opts.Overwrite {
			return nil, core.NewConfigError("export_overwrite", "export file %q already exists and overwrite is false", path)
		}
		mode = "overwrote"
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat export file %q: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open export file %q: %w", path, err)
	}
	return &Destination{Kind: KindFile, Location: path, Mode: mode, WriteCloser: f}, nil
}

func openS3(ctx context.Context, opts config.Export, o openOptions) (*Destination, error) {
	key := opts.S3Key
	if key == "" {
		return nil, core.NewConfigError("export_s3_key", "required when export_s3_bucket is set")
	}
	client := o.s3Client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if opts.S3Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
		}
		if opts.S3Profile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.S3Profile))
		}
		if o.s3Creds != nil {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(o.s3Creds))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg)
	}
	w := &s3WriteCloser{ctx: ctx, client: client, bucket: opts.S3Bucket, key: key}
	return &Destination{WriteCloser: w, Kind: KindS3, Location: "s3://" + opts.S3Bucket + "/" + key}, nil
}

// s3WriteCloser buffers the export and uploads it as one object on Close.
type s3WriteCloser struct {
	ctx    context.Context
	buf    bytes.Buffer
	client PutObjectAPI
	bucket string
	key    string
	closed bool
}

func (s *s3WriteCloser) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("s3 object %s is already uploaded", s.key)
	}
	return s.buf.Write(p)
}

func (s *s3WriteCloser) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
