package media

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxTextFilenameLength bounds text based names so the full path stays under
// the 260 character limit of legacy Windows paths.
const maxTextFilenameLength = 250

// textReserve leaves room for the extension and the downloads directory.
const textReserve = 4 + 80

var (
	pathBreakingChars = regexp.MustCompile(`[\\*?"<>|~]`)
	urlPattern        = regexp.MustCompile(`https?\S+`)
	separatorChars    = regexp.MustCompile(`\n|:|/`)
	repeatedSpaces    = regexp.MustCompile(` +`)
)

// DateLabel renders a post timestamp as the bracketed ISO date used as a filename prefix.
func DateLabel(t time.Time) string {
	return "[" + t.UTC().Format("2006-01-02") + "]"
}

// DeriveFilename returns the deterministic name for the index-th attachment of a post.
//
//	DeriveFilename("[2021-07-04]", "12345", 0, KindPhoto) == "[2021-07-04]_12345_0.jpg"
func DeriveFilename(date, postID string, index int, kind Kind) string {
	return date + "_" + postID + "_" + strconv.Itoa(index) + kind.Extension()
}

// SanitizeText makes post text safe to embed in a filename: path breaking
// characters and URLs are removed, newlines, colons and slashes become spaces,
// and runs of spaces collapse.
func SanitizeText(text string) string {
	text = pathBreakingChars.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(separatorChars.ReplaceAllString(text, " "))
	return repeatedSpaces.ReplaceAllString(text, " ")
}

// TextFilename builds the text based name: the date, the sanitized post text
// cut to fit the path budget, then the post id, index and extension.
// DeriveFilename is what the sync writes; this form is kept for tooling that
// wants human readable names.
func TextFilename(date, text, postID string, index int, kind Kind) string {
	suffix := "_" + postID + "_" + strconv.Itoa(index)
	budget := maxTextFilenameLength - (len(date+suffix) + textReserve)

	runes := []rune(SanitizeText(text))
	if budget < 0 {
		budget = 0
	}
	if len(runes) > budget {
		runes = runes[:budget]
	}

	return date + string(runes) + suffix + kind.Extension()
}

// FallbackFilename is the short name used when the derived name cannot be
// written: the post id plus the original extension. Attachments of the same
// post with the same extension map to the same fallback.
func FallbackFilename(filename, postID string) string {
	return postID + filepath.Ext(filename)
}
