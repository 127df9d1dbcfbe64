package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyzeit/internal/shared/util"
)

func offlineStore(bucket, prefix string) *Store {
	client := s3.New(s3.Options{
		Region: "sa-east-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, nil
		}),
	})
	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    normalizePrefix(prefix),
	}
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	cases := map[string]struct{ prefix, key, want string }{
		"none":          {"", "ns/scan.png", "ns/scan.png"},
		"plain":         {"images", "ns/scan.png", "images/ns/scan.png"},
		"slashes":       {"/images/", "/ns/scan.png", "images/ns/scan.png"},
		"prefix only":   {"images", "", "images"},
		"nested prefix": {"prod/images", "ns/a.jpg", "prod/images/ns/a.jpg"},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, applyPrefix(tc.prefix, tc.key), name)
	}
}

func TestRefJoinsBucketAndKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "s3://exams/images/ns/scan.png", Ref("exams", "/images/ns/scan.png"))
}

func TestPutRejectsBadNamesBeforeUploading(t *testing.T) {
	t.Parallel()

	_, err := offlineStore("exams", "").Put(context.Background(), "u1", "../scan.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, util.ErrInvalidFileName)

	_, err = offlineStore("", "").Put(context.Background(), "u1", "scan.png", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPresignGetSignsOfflineWithExpiry(t *testing.T) {
	t.Parallel()

	raw, err := offlineStore("", "").PresignGet(context.Background(), "exams", "ns/scan.png", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, u.Host+u.Path, "exams")
	assert.True(t, strings.HasSuffix(u.Path, "/ns/scan.png"), u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
