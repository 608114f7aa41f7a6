package likes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/pders01/likesync/internal/media"
)

var ErrMissingID = errors.New("post has no id")

// Normalize turns one upstream post into the verbatim timeline record and the
// compact favorite. It performs no I/O. Attachments of unknown type or
// without a usable URL are left out of the favorite.
func Normalize(raw json.RawMessage) (json.RawMessage, *Favorite, error) {
	var post rawPost
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, nil, fmt.Errorf("decoding post: %w", err)
	}

	id := post.id()
	if id == "" {
		return nil, nil, ErrMissingID
	}

	fav := &Favorite{
		ID:         id,
		CreatedAt:  post.CreatedAt,
		ScreenName: post.User.ScreenName,
		Text:       post.text(),
		Media:      []*MediaRef{},
	}
	if _, err := fav.Created(); err != nil {
		return nil, nil, err
	}

	for _, m := range post.media() {
		if ref, ok := mediaRef(m); ok {
			fav.Media = append(fav.Media, ref)
		}
	}

	record := append(json.RawMessage(nil), bytes.TrimSpace(raw)...)
	return record, fav, nil
}

func mediaRef(m rawMedia) (*MediaRef, bool) {
	kind, ok := media.ParseKind(m.Type)
	if !ok {
		return nil, false
	}

	var url string
	if kind.IsStream() {
		v, ok := SelectVariant(m.VideoInfo.Variants)
		if !ok {
			return nil, false
		}
		url = v.URL
	} else {
		if m.MediaURLHTTPS == "" {
			return nil, false
		}
		url = m.MediaURLHTTPS + kind.URLSuffix()
	}

	return &MediaRef{ID: m.id(), URL: url, Type: kind}, true
}

// SelectVariant picks the rendition to download. Variants without a bitrate
// (the streaming playlist) rank first, the rest by descending bitrate; the
// first ranked variant that declares a bitrate wins. When no variant
// declares one the first ranked variant is used.
func SelectVariant(variants []Variant) (Variant, bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}

	ranked := make([]Variant, len(variants))
	copy(ranked, variants)
	sort.SliceStable(ranked, func(i, j int) bool {
		bi, bj := ranked[i].Bitrate, ranked[j].Bitrate
		if (bi == nil) != (bj == nil) {
			return bi == nil
		}
		if bi == nil {
			return false
		}
		return *bi > *bj
	})

	for _, v := range ranked {
		if v.Bitrate != nil {
			return v, true
		}
	}
	return ranked[0], true
}
