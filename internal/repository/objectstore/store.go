// Package objectstore implements the remote record store on an S3-compatible bucket,
// one JSON object per record under <prefix>/<kind>/<name>.json.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
	"github.com/and161185/sable-sync/internal/repository"
)

var _ repository.RemoteStore = (*Store)(nil)

// Upload parallelism per QoS class.
const (
	defaultUploads       = 1
	userInitiatedUploads = 8
)

// API is the subset of *s3.Client used by the store.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures the S3 connection.
type Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// Store implements RemoteStore over an S3 bucket.
type Store struct {
	api    API
	bucket string
	prefix string
}

// New builds an S3 client from opts. Static credentials are used when both keys are set;
// a custom endpoint switches to path-style addressing for MinIO and similar servers.
func New(ctx context.Context, opts Options) (*Store, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, opts.Bucket, opts.Prefix), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// document is the object body.
type document struct {
	Kind   model.Kind             `json:"kind"`
	Name   string                 `json:"name"`
	Fields map[string]model.Value `json:"fields"`
}

// AccountStatus probes the bucket with HeadBucket.
func (s *Store) AccountStatus(ctx context.Context) (model.AccountStatus, error) {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return model.AccountAvailable, nil
	}
	code := apiCode(err)
	switch {
	case accessCodes[code]:
		return model.AccountRestricted, nil
	case credentialCodes[code]:
		return model.AccountNoAccount, nil
	case code == "NoSuchBucket" || code == "NotFound":
		return model.AccountUnavailable, nil
	}
	err = classify("account status", err)
	if errors.Is(err, errs.ErrNetwork) {
		return model.AccountTemporarilyUnavailable, err
	}
	return model.AccountUnavailable, err
}

// Save writes the record object, replacing any previous version.
func (s *Store) Save(ctx context.Context, rec model.Record) (*model.Record, error) {
	out, err := s.put(ctx, rec)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	stored := model.Record{ID: rec.ID, Fields: rec.Fields}
	return &stored, nil
}

// FetchAll lists and downloads every object under the kind prefix.
func (s *Store) FetchAll(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	op := "fetch " + string(kind)
	out := make([]model.Record, 0)

	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.kindPrefix(kind)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(op, err)
		}
		for _, obj := range page.Contents {
			rec, err := s.get(ctx, aws.ToString(obj.Key))
			if errors.Is(err, errs.ErrNotFound) {
				continue // removed between list and get
			}
			if err != nil {
				return nil, classify(op, err)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes the record object; a missing object reports errs.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id model.RecordID) error {
	key := s.key(id)
	if _, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return classify("delete "+id.String(), err)
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return classify("delete "+id.String(), err)
	}
	return nil
}

// BatchSave uploads every record; all uploads are attempted and the first failure fails the batch.
func (s *Store) BatchSave(ctx context.Context, recs []model.Record) (int, error) {
	limit := defaultUploads
	if model.QoSFrom(ctx) == model.QoSUserInitiated {
		limit = userInitiatedUploads
	}

	var (
		g     errgroup.Group
		saved atomic.Int64
	)
	g.SetLimit(limit)
	for i, r := range recs {
		g.Go(func() error {
			out, err := s.put(ctx, r)
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			if out != nil {
				saved.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(saved.Load()), nil
}

func (s *Store) put(ctx context.Context, rec model.Record) (*s3.PutObjectOutput, error) {
	body, err := json.Marshal(document{Kind: rec.ID.Kind, Name: rec.ID.Name, Fields: rec.Fields})
	if err != nil {
		return nil, errs.Invalid("encode %s: %v", rec.ID, err)
	}
	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(rec.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classify("save "+rec.ID.String(), err)
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, key string) (model.Record, error) {
	obj, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return model.Record{}, classify("get "+key, err)
	}
	defer obj.Body.Close()

	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return model.Record{}, fmt.Errorf("read %s: %w: %v", key, errs.ErrNetwork, err)
	}
	var d document
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if d.Fields == nil {
		d.Fields = map[string]model.Value{}
	}
	return model.Record{ID: model.RecordID{Kind: d.Kind, Name: d.Name}, Fields: d.Fields}, nil
}

func (s *Store) kindPrefix(kind model.Kind) string {
	return path.Join(s.prefix, string(kind)) + "/"
}

func (s *Store) key(id model.RecordID) string {
	return s.kindPrefix(id.Kind) + url.PathEscape(id.Name) + ".json"
}
