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

package readers

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aaronlmathis/assetetl/core"
)

// MongoReaderError provides structured error information for MongoDB reader operations.
type MongoReaderError struct {
	Op         string
	Collection string
	Err        error
}

func (e *MongoReaderError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo reader %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo reader %s: %v", e.Op, e.Err)
}

func (e *MongoReaderError) Unwrap() error {
	return e.Err
}

// MongoReaderStats holds statistics about the MongoDB reader.
type MongoReaderStats struct {
	RecordsRead  int64
	ReadDuration time.Duration
	LastReadTime time.Time
}

// MongoReaderOptions configures the MongoDB reader.
type MongoReaderOptions struct {
	URI            string
	Database       string
	Collection     string
	Filter         bson.M
	Projection     bson.M
	Sort           bson.D
	Pipeline       []bson.M
	BatchSize      int32
	Limit          int64
	CountTotal     bool
	Timeout        time.Duration
	ReadPreference string
	ReadConcern    string
}

// ReaderOptionMongo is a functional option for MongoReaderOptions.
type ReaderOptionMongo func(*MongoReaderOptions)

func WithMongoURI(uri string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.URI = uri
	}
}

func WithMongoDB(database string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Database = database
	}
}

func WithMongoCollection(collection string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Collection = collection
	}
}

func WithMongoFilter(filter bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Filter = filter
	}
}

func WithMongoProjection(projection bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Projection = projection
	}
}

// WithMongoSort sets the sort order. bson.D keeps key order significant.
func WithMongoSort(sort bson.D) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Sort = sort
	}
}

// WithMongoPipeline reads through an aggregation pipeline instead of a find.
func WithMongoPipeline(pipeline []bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Pipeline = pipeline
	}
}

func WithMongoBatchSize(batchSize int32) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.BatchSize = batchSize
	}
}

func WithMongoLimit(limit int64) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Limit = limit
	}
}

// WithMongoCountTotal counts matching documents up front so Progress reports a total.
func WithMongoCountTotal(count bool) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.CountTotal = count
	}
}

func WithMongoTimeout(timeout time.Duration) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Timeout = timeout
	}
}

func WithMongoReadPreference(preference string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.ReadPreference = preference
	}
}

func WithMongoReadConcern(concern string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.ReadConcern = concern
	}
}

// MongoReader implements core.DataSource and core.ProgressSource for a
// MongoDB collection of asset documents.
type MongoReader struct {
	client     *mongo.Client
	collection *mongo.Collection
	cursor     *mongo.Cursor
	opts       *MongoReaderOptions
	stats      MongoReaderStats
	progress   core.Progress
	connected  bool
}

// NewMongoReader validates options. The connection is made on first Read.
func NewMongoReader(options ...ReaderOptionMongo) (*MongoReader, error) {
	opts := &MongoReaderOptions{
		URI:            "mongodb://localhost:27017",
		BatchSize:      1000,
		Timeout:        30 * time.Second,
		ReadPreference: "primary",
		ReadConcern:    "local",
	}
	for _, option := range options {
		option(opts)
	}

	if opts.Database == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}
	if _, err := readPreference(opts.ReadPreference); err != nil {
		return nil, &MongoReaderError{Op: "validate", Err: err}
	}
	return &MongoReader{opts: opts}, nil
}

// Connect opens the client and verifies it with a ping.
func (mr *MongoReader) Connect(ctx context.Context) error {
	if mr.connected {
		return nil
	}
	pref, err := readPreference(mr.opts.ReadPreference)
	if err != nil {
		return &MongoReaderError{Op: "build_options", Err: err}
	}
	clientOpts := options.Client().
		ApplyURI(mr.opts.URI).
		SetReadPreference(pref).
		SetReadConcern(readconcern.New(readconcern.Level(mr.opts.ReadConcern))).
		SetTimeout(mr.opts.Timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return &MongoReaderError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return &MongoReaderError{Op: "ping", Err: err}
	}

	mr.client = client
	mr.collection = client.Database(mr.opts.Database).Collection(mr.opts.Collection)
	mr.connected = true
	return nil
}

// Read implements the core.DataSource interface.
func (mr *MongoReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		mr.stats.ReadDuration += time.Since(start)
		mr.stats.LastReadTime = time.Now()
	}()

	if !mr.connected {
		if err := mr.Connect(ctx); err != nil {
			return nil, err
		}
	}
	if mr.cursor == nil {
		if err := mr.initializeCursor(ctx); err != nil {
			return nil, &MongoReaderError{Op: "init_cursor", Collection: mr.opts.Collection, Err: err}
		}
		mr.progress.FetchSecondsTotal = time.Since(start).Seconds()
	}

	if !mr.cursor.Next(ctx) {
		if err := mr.cursor.Err(); err != nil {
			return nil, &MongoReaderError{Op: "cursor_next", Collection: mr.opts.Collection, Err: err}
		}
		return nil, io.EOF
	}

	var doc bson.M
	if err := mr.cursor.Decode(&doc); err != nil {
		return nil, &MongoReaderError{Op: "decode", Collection: mr.opts.Collection, Err: err}
	}
	mr.stats.RecordsRead++
	if mr.opts.BatchSize > 0 && (mr.stats.RecordsRead-1)%int64(mr.opts.BatchSize) == 0 {
		mr.progress.PageNumber++
	}
	return convertBSONToRecord(doc), nil
}

// Progress implements the core.ProgressSource interface. Pages count cursor batches.
func (mr *MongoReader) Progress() core.Progress {
	return mr.progress
}

// Stats returns MongoDB reader statistics.
func (mr *MongoReader) Stats() MongoReaderStats {
	return mr.stats
}

// Close implements the core.DataSource interface.
func (mr *MongoReader) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mr.opts.Timeout)
	defer cancel()

	var firstErr error
	if mr.cursor != nil {
		if err := mr.cursor.Close(ctx); err != nil {
			firstErr = &MongoReaderError{Op: "cursor_close", Collection: mr.opts.Collection, Err: err}
		}
		mr.cursor = nil
	}
	if mr.client != nil {
		if err := mr.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = &MongoReaderError{Op: "disconnect", Err: err}
		}
		mr.client = nil
	}
	mr.connected = false
	return firstErr
}

func (mr *MongoReader) initializeCursor(ctx context.Context) error {
	filter := mr.opts.Filter
	if filter == nil {
		filter = bson.M{}
	}

	if len(mr.opts.Pipeline) > 0 {
		aggOpts := options.Aggregate()
		if mr.opts.BatchSize > 0 {
			aggOpts.SetBatchSize(mr.opts.BatchSize)
		}
		cursor, err := mr.collection.Aggregate(ctx, mr.opts.Pipeline, aggOpts)
		if err != nil {
			return err
		}
		mr.cursor = cursor
		return nil
	}

	if mr.opts.CountTotal {
		countOpts := options.Count()
		if mr.opts.Limit > 0 {
			countOpts.SetLimit(mr.opts.Limit)
		}
		total, err := mr.collection.CountDocuments(ctx, filter, countOpts)
		if err != nil {
			return err
		}
		mr.progress.RowsToFetchTotal = int(total)
		if mr.opts.BatchSize > 0 {
			mr.progress.PagesToFetchTotal = int((total + int64(mr.opts.BatchSize) - 1) / int64(mr.opts.BatchSize))
		}
	}

	findOpts := options.Find()
	if mr.opts.BatchSize > 0 {
		findOpts.SetBatchSize(mr.opts.BatchSize)
	}
	if mr.opts.Limit > 0 {
		findOpts.SetLimit(mr.opts.Limit)
	}
	if mr.opts.Projection != nil {
		findOpts.SetProjection(mr.opts.Projection)
	}
	if mr.opts.Sort != nil {
		findOpts.SetSort(mr.opts.Sort)
	}

	cursor, err := mr.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return err
	}
	mr.cursor = cursor
	return nil
}

func readPreference(mode string) (*readpref.ReadPref, error) {
	switch mode {
	case "", "primary":
		return readpref.Primary(), nil
	case "primaryPreferred":
		return readpref.PrimaryPreferred(), nil
	case "secondary":
		return readpref.Secondary(), nil
	case "secondaryPreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest(), nil
	}
	return nil, fmt.Errorf("unsupported read preference: %s", mode)
}

func convertBSONToRecord(doc bson.M) core.Record {
	record := make(core.Record, len(doc))
	for key, value := range doc {
		record[key] = convertBSONValue(value)
	}
	return record
}

// convertBSONValue maps BSON types onto the plain values asset rows carry.
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339)
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return v.String()
	case primitive.Binary:
		return v.Data
	case primitive.Regex:
		return v.Pattern
	case primitive.Undefined, primitive.Null:
		return nil
	case bson.M:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = convertBSONValue(val)
		}
		return result
	case bson.D:
		result := make(map[string]interface{}, len(v))
		for _, e := range v {
			result[e.Key] = convertBSONValue(e.Value)
		}
		return result
	case bson.A:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertBSONValue(val)
		}
		return result
	default:
		return v
	}
}
