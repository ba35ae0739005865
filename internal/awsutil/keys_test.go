package awsutil

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "photos/abc/image_007.heic", PhotoKey("abc", 7, ".HEIC"))
	assert.Equal(t, "prepared/abc/image_012.jpg", PreparedKey("abc", 12))
	assert.Equal(t, "exports/abc/report.txt", ExportKey("abc"))
}

func TestParsePhotoKey(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantN  int
		wantOK bool
	}{
		{"photos/abc/image_001.jpg", "abc", 1, true},
		{"photos/abc/image_120.png", "abc", 120, true},
		{PhotoKey("f3c1", 4, ".webp"), "f3c1", 4, true},
		{"prepared/abc/image_001.jpg", "", 0, false},
		{"photos/abc/photo_001.jpg", "", 0, false},
		{"photos/abc/image_x.jpg", "", 0, false},
		{"photos/abc/image_000.jpg", "", 0, false},
		{"photos//image_001.jpg", "", 0, false},
		{"photos/abc/nested/image_001.jpg", "", 0, false},
		{"photos/abc", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, n, ok := ParsePhotoKey(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantN, n)
		})
	}
}

func TestReadWriteObject(t *testing.T) {
	s3 := &MockS3{}
	ctx := context.Background()

	require.NoError(t, WriteObject(ctx, s3, "bucket", "exports/a/report.txt", "text/plain", []byte("report")))
	assert.Equal(t, "text/plain", s3.Types["bucket/exports/a/report.txt"])

	data, err := ReadObject(ctx, s3, "bucket", "exports/a/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))

	_, err = ReadObject(ctx, s3, "bucket", "missing")
	assert.Error(t, err)
}

func TestReadObject_TooLarge(t *testing.T) {
	s3 := &MockS3{Objects: map[string][]byte{"b/big": []byte(strings.Repeat("x", MaxObjectSize+1))}}
	_, err := ReadObject(context.Background(), s3, "b", "big")
	assert.ErrorContains(t, err, "exceeds")
}

func TestReadObject_GetError(t *testing.T) {
	s3 := &MockS3{GetErr: errors.New("access denied")}
	_, err := ReadObject(context.Background(), s3, "b", "k")
	assert.ErrorContains(t, err, "access denied")
}
