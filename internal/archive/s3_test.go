package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/relaycore/channel-console/internal/model"
)

type fakeS3 struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	expires time.Duration
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = b
	f.meta[*in.Key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	n := int64(len(b))
	return &s3.HeadObjectOutput{ContentLength: &n}, nil
}

func (f *fakeS3) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://exports.example/" + *in.Bucket + "/" + *in.Key + "?X-Amz-Signature=sig",
		Method: http.MethodGet,
	}, nil
}

func newArchive(f *fakeS3) *Archive {
	return &Archive{objects: f, presign: f, bucket: "console"}
}

func TestExportChannel(t *testing.T) {
	f := newFakeS3()
	a := newArchive(f)
	c := model.NewChannel("Lab")
	c.Revision = 4

	exp, err := a.ExportChannel(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Key != "channels/"+c.ID+"/4.json" || exp.LatestKey != "channels/"+c.ID+"/latest.json" {
		t.Errorf("keys = %s, %s", exp.Key, exp.LatestKey)
	}
	if len(exp.Checksum) != 64 {
		t.Errorf("checksum = %q", exp.Checksum)
	}

	for _, key := range []string{exp.Key, exp.LatestKey} {
		body, ok := f.objects[key]
		if !ok {
			t.Fatalf("%s not uploaded", key)
		}
		var back model.Channel
		if err := json.Unmarshal(body, &back); err != nil {
			t.Fatal(err)
		}
		if back.ID != c.ID || back.Name != "Lab" {
			t.Errorf("%s holds %s %q", key, back.ID, back.Name)
		}
		if f.meta[key]["revision"] != "4" || f.meta[key]["sha256"] != exp.Checksum {
			t.Errorf("%s metadata = %v", key, f.meta[key])
		}
	}
}

func TestExportChannelRequiresID(t *testing.T) {
	a := newArchive(newFakeS3())
	if _, err := a.ExportChannel(context.Background(), &model.Channel{}); err == nil {
		t.Error("expected an error for a channel without id")
	}
}

func TestExportURL(t *testing.T) {
	f := newFakeS3()
	a := newArchive(f)
	ctx := context.Background()

	if _, err := a.ExportURL(ctx, "c1", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ExportURL before export: %v", err)
	}

	c := model.NewChannel("Lab")
	a.ExportChannel(ctx, c)
	url, err := a.ExportURL(ctx, c.ID, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, LatestKey(c.ID)) || f.expires != 15*time.Minute {
		t.Errorf("url = %s expires = %v", url, f.expires)
	}
}
