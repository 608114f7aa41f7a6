package media

import (
	_ "embed"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

//go:embed kinds.toml
var kindsTOML []byte

// Kind is the upstream media type of an attachment.
type Kind string

const (
	KindPhoto       Kind = "photo"
	KindVideo       Kind = "video"
	KindAnimatedGIF Kind = "animated_gif"
)

// defaultExtension applies to every kind missing from the table.
const defaultExtension = ".mp4"

type kindSpec struct {
	Extension string `toml:"extension"`
	URLSuffix string `toml:"url_suffix,omitempty"`
}

type kindsConfig struct {
	Kinds map[string]kindSpec `toml:"kinds"`
}

var kindTable = mustLoadKinds(kindsTOML)

func loadKinds(data []byte) (map[Kind]kindSpec, error) {
	var cfg kindsConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing kinds.toml: %w", err)
	}
	table := make(map[Kind]kindSpec, len(cfg.Kinds))
	for name, spec := range cfg.Kinds {
		table[Kind(name)] = spec
	}
	return table, nil
}

func mustLoadKinds(data []byte) map[Kind]kindSpec {
	table, err := loadKinds(data)
	if err != nil {
		panic(err)
	}
	return table
}

// ParseKind maps an upstream type string to a known Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kindTable[k]
	return k, ok
}

// IsStream reports whether the kind is delivered as ranked video variants.
func (k Kind) IsStream() bool {
	return k == KindVideo || k == KindAnimatedGIF
}

// Extension is the file extension, dot included, written for this kind.
func (k Kind) Extension() string {
	if spec, ok := kindTable[k]; ok && spec.Extension != "" {
		return spec.Extension
	}
	return defaultExtension
}

// URLSuffix is appended to the canonical asset URL to request the full size rendition.
func (k Kind) URLSuffix() string {
	return kindTable[k].URLSuffix
}
