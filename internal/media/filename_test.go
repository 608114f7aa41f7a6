package media

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFilename(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		post  string
		index int
		kind  Kind
		want  string
	}{
		{"photo", "[2021-07-04]", "12345", 0, KindPhoto, "[2021-07-04]_12345_0.jpg"},
		{"video", "[2021-07-04]", "12345", 1, KindVideo, "[2021-07-04]_12345_1.mp4"},
		{"gif", "[2020-01-31]", "987", 3, KindAnimatedGIF, "[2020-01-31]_987_3.mp4"},
		{"unknown kind", "[2020-01-31]", "987", 0, Kind("audio"), "[2020-01-31]_987_0.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveFilename(tt.date, tt.post, tt.index, tt.kind)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, DeriveFilename(tt.date, tt.post, tt.index, tt.kind))
		})
	}
}

func TestDateLabel(t *testing.T) {
	ts := time.Date(2021, 7, 4, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "[2021-07-04]", DateLabel(ts))

	// Labels are always rendered in UTC.
	east := time.FixedZone("east", 3*60*60)
	assert.Equal(t, "[2021-07-04]", DateLabel(time.Date(2021, 7, 5, 1, 0, 0, 0, east)))
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"forbidden chars", `a\b*c?d"e<f>g|h~i`, "a b c d e f g h i"},
		{"urls removed", "look https://t.co/abc123 here http://x.y/z", "look here"},
		{"separators", "line one\nline: two/three", "line one line two three"},
		{"collapse and trim", "  lots    of   space  ", "lots of space"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}

func TestTextFilename(t *testing.T) {
	got := TextFilename("[2021-07-04]", "cat: pictures https://t.co/x", "12345", 0, KindPhoto)
	assert.Equal(t, "[2021-07-04]cat pictures_12345_0.jpg", got)

	long := strings.Repeat("word ", 200)
	got = TextFilename("[2021-07-04]", long, "12345", 2, KindVideo)
	assert.True(t, strings.HasPrefix(got, "[2021-07-04]word"))
	assert.True(t, strings.HasSuffix(got, "_12345_2.mp4"))
	// 250 - (len("[2021-07-04]_12345_2") + 84) characters of text survive
	assert.Len(t, got, len("[2021-07-04]")+146+len("_12345_2.mp4"))
}

func TestFallbackFilename(t *testing.T) {
	assert.Equal(t, "12345.jpg", FallbackFilename("[2021-07-04]_12345_0.jpg", "12345"))
	assert.Equal(t, "12345.mp4", FallbackFilename("some very long name.mp4", "12345"))
	assert.Equal(t, "12345", FallbackFilename("noext", "12345"))
}
