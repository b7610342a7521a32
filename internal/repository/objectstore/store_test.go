package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headErr error
	putErr  map[string]error
	puts    int
}

var _ API = (*fakeS3)(nil)

func newFake() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, putErr: map[string]error{}}
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := f.putErr[key]; err != nil {
		return nil, err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = b
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func goal(name, title string) model.Record {
	return model.Record{
		ID:     model.RecordID{Kind: model.KindGoal, Name: name},
		Fields: map[string]model.Value{"title": model.String(title), "progress": model.Double(0.5)},
	}
}

func TestStore_SaveFetchOverwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFake()
	s := NewWithAPI(f, "vault", "/backups/")

	_, err := s.Save(ctx, goal("g/1", "first"))
	require.NoError(t, err)
	saved, err := s.Save(ctx, goal("g/1", "second"))
	require.NoError(t, err)
	require.Equal(t, "g/1", saved.ID.Name)

	require.Contains(t, f.objects, "backups/Goal/g%2F1.json")

	all, err := s.FetchAll(ctx, model.KindGoal)
	require.NoError(t, err)
	require.Len(t, all, 1)
	title, _ := all[0].Get("title").AsString()
	require.Equal(t, "second", title)
	progress, _ := all[0].Get("progress").AsDouble()
	require.Equal(t, 0.5, progress)

	empty, err := s.FetchAll(ctx, model.KindChatMessage)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestStore_BatchSave(t *testing.T) {
	t.Parallel()
	f := newFake()
	s := NewWithAPI(f, "vault", "")

	ctx := model.WithQoS(context.Background(), model.QoSUserInitiated)
	n, err := s.BatchSave(ctx, []model.Record{goal("a", "1"), goal("b", "2"), goal("c", "3")})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, f.puts)
}

func TestStore_BatchSave_FailureIsTerminal(t *testing.T) {
	t.Parallel()
	f := newFake()
	f.putErr["Goal/b.json"] = &smithy.GenericAPIError{Code: "SlowDown"}
	s := NewWithAPI(f, "vault", "")

	n, err := s.BatchSave(context.Background(), []model.Record{goal("a", "1"), goal("b", "2"), goal("c", "3")})
	require.ErrorIs(t, err, errs.ErrNetwork)
	require.Equal(t, 0, n)
	require.Equal(t, 2, f.puts, "remaining uploads are still attempted")
}

func TestStore_WriteWithBadCredentialsIsNotAvailable(t *testing.T) {
	t.Parallel()
	f := newFake()
	f.putErr["Goal/a.json"] = &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}
	s := NewWithAPI(f, "vault", "")

	_, err := s.Save(context.Background(), goal("a", "1"))
	require.ErrorIs(t, err, errs.ErrNotAvailable)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFake()
	s := NewWithAPI(f, "vault", "")
	id := model.RecordID{Kind: model.KindGoal, Name: "a"}

	require.ErrorIs(t, s.Delete(ctx, id), errs.ErrNotFound)
	_, err := s.Save(ctx, goal("a", "1"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))
	require.Empty(t, f.objects)
}

func TestStore_AccountStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		headErr error
		want    model.AccountStatus
		wantErr error
	}{
		{"ok", nil, model.AccountAvailable, nil},
		{"forbidden", &smithy.GenericAPIError{Code: "Forbidden"}, model.AccountRestricted, nil},
		{"bad key", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, model.AccountNoAccount, nil},
		{"no bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, model.AccountUnavailable, nil},
		{"timeout", context.DeadlineExceeded, model.AccountTemporarilyUnavailable, errs.ErrNetwork},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFake()
			f.headErr = tc.headErr
			st, err := NewWithAPI(f, "vault", "").AccountStatus(ctx)
			require.Equal(t, tc.want, st)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClassify_Unrecognised(t *testing.T) {
	t.Parallel()

	plain := errors.New("weird")
	out := classify("op", plain)
	require.ErrorIs(t, out, plain)
	require.Equal(t, errs.KindUnknown, errs.KindOf(out))
}

func TestClassify_KeepsAPIError(t *testing.T) {
	t.Parallel()

	out := classify("save Goal/a", &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce rate"})
	require.ErrorIs(t, out, errs.ErrNetwork)
	var ae smithy.APIError
	require.ErrorAs(t, out, &ae)
	require.Equal(t, "SlowDown", ae.ErrorCode())
}
