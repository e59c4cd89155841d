package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageType(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        bool
	}{
		{"image/jpeg", "photo.jpg", true},
		{"image/png", "banner.png", true},
		{"", "banner.webp", true},
		{"application/octet-stream", "banner.jpeg", true},
		{"application/pdf", "flyer.pdf", false},
		{"", "notes.txt", false},
		{"", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateImageType(tt.contentType, tt.filename), "%s %s", tt.contentType, tt.filename)
	}
}

func TestEventImageKey(t *testing.T) {
	assert.Equal(t, "events/7/banner.png", EventImageKey(7, "banner.png"))
	// Path components in the upload name never escape the event folder.
	assert.Equal(t, "events/7/banner.png", EventImageKey(7, "../../banner.png"))
}

func TestObjectKeyFromURL(t *testing.T) {
	s := &S3{cfg: S3Config{Region: "eu-west-2", ImagesBucket: "gatherpoint-event-images"}}

	key := EventImageKey(3, "fair.jpg")
	got, ok := s.ObjectKeyFromURL(s.PublicObjectURL(key))
	assert.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = s.ObjectKeyFromURL("https://elsewhere.example.com/events/3/fair.jpg")
	assert.False(t, ok)

	_, ok = s.ObjectKeyFromURL("https://gatherpoint-event-images.s3.eu-west-2.amazonaws.com/")
	assert.False(t, ok)
}

func TestPresignExpire(t *testing.T) {
	s := &S3{cfg: S3Config{PresignExpireMinutes: 30}}
	assert.Equal(t, 30*time.Minute, s.PresignExpire())

	s = &S3{}
	assert.Equal(t, 15*time.Minute, s.PresignExpire())
}
