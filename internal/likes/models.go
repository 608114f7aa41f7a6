// Package likes converts upstream post objects into the records the sync
// persists: the verbatim timeline record and the compact favorite.
package likes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pders01/likesync/internal/media"
)

// CreatedAtLayout is the upstream timestamp format, e.g. "Sun Jul 04 18:30:00 +0000 2021".
const CreatedAtLayout = time.RubyDate

// MediaRef is one attachment of a favorite. Filename is set only after the
// file has been written.
type MediaRef struct {
	ID       string     `json:"id_str"`
	URL      string     `json:"url"`
	Type     media.Kind `json:"type"`
	Filename string     `json:"filename,omitempty"`
}

// Favorite is the compact record kept in favorites.json and in the ledger.
type Favorite struct {
	ID         string      `json:"id_str"`
	CreatedAt  string      `json:"created_at"`
	ScreenName string      `json:"screen_name"`
	Text       string      `json:"tweet"`
	Media      []*MediaRef `json:"media"`
}

// Created parses CreatedAt.
func (f *Favorite) Created() (time.Time, error) {
	t, err := time.Parse(CreatedAtLayout, f.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at of post %s: %w", f.ID, err)
	}
	return t, nil
}

// Filenames lists the media files written for this favorite, in media order.
func (f *Favorite) Filenames() []string {
	names := make([]string, 0, len(f.Media))
	for _, m := range f.Media {
		if m.Filename != "" {
			names = append(names, m.Filename)
		}
	}
	return names
}

// Variant is one encoded rendition of a video or animated gif.
type Variant struct {
	Bitrate     *int   `json:"bitrate,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url"`
}

type rawUser struct {
	ScreenName string `json:"screen_name"`
}

type rawVideoInfo struct {
	Variants []Variant `json:"variants"`
}

type rawMedia struct {
	ID            json.Number  `json:"id"`
	IDStr         string       `json:"id_str"`
	Type          string       `json:"type"`
	MediaURLHTTPS string       `json:"media_url_https"`
	VideoInfo     rawVideoInfo `json:"video_info"`
}

type rawEntities struct {
	Media []rawMedia `json:"media"`
}

// rawPost holds the fields of an upstream post the normalizer reads. Both
// the flattened form (media at the top level) and the API form (media under
// extended_entities) are accepted.
type rawPost struct {
	ID               json.Number `json:"id"`
	IDStr            string      `json:"id_str"`
	CreatedAt        string      `json:"created_at"`
	User             rawUser     `json:"user"`
	FullText         string      `json:"full_text"`
	Text             string      `json:"text"`
	Media            []rawMedia  `json:"media"`
	ExtendedEntities rawEntities `json:"extended_entities"`
}

func (p *rawPost) id() string {
	if p.IDStr != "" {
		return p.IDStr
	}
	return p.ID.String()
}

func (p *rawPost) text() string {
	if p.FullText != "" {
		return p.FullText
	}
	return p.Text
}

func (p *rawPost) media() []rawMedia {
	if len(p.Media) > 0 {
		return p.Media
	}
	return p.ExtendedEntities.Media
}

func (m *rawMedia) id() string {
	if m.IDStr != "" {
		return m.IDStr
	}
	return m.ID.String()
}
