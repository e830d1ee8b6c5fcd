// Copyright 2022-2026 aquova et al.

package curator

import (
	"fmt"
	"math/rand/v2"

	"github.com/aquova/leah/pkg/catalog"
)

// RepostKind selects which title rules a repost gets.
type RepostKind int

const (
	RepostGallery RepostKind = iota
	RepostShowcase
)

// FormatInput carries everything the formatter needs to build a repost
// block from a source post. Author must be a fresh member lookup so name,
// colour and avatar changes are reflected at publish time.
type FormatInput struct {
	Kind   RepostKind
	Source *Post
	Author *Member
	// ChannelName names the source channel for title templates.
	ChannelName string
	// JumpLink is the jump reference of the source post. It becomes the
	// block's URL field, which makes the repost self-describing for
	// future locator resolution.
	JumpLink string
	// PublisherMention, when non-empty, names a publisher acting on
	// someone else's post and produces the watermark prefix.
	PublisherMention string
}

// Formatter builds repost rich blocks. Title selection for gallery reposts
// is uniformly random over the catalog's title list; the picker is
// injectable so tests are deterministic.
type Formatter struct {
	catalog *catalog.Catalog
	pick    func(n int) int
}

// NewFormatter builds a Formatter over the given template catalog.
func NewFormatter(cat *catalog.Catalog) *Formatter {
	return &Formatter{catalog: cat, pick: rand.IntN}
}

// Build assembles the repost block. Rules are applied in order: title,
// body, image, attribution, locator, watermark.
func (f *Formatter) Build(in FormatInput) *RichBlock {
	src := in.Source
	pre := src.Block()
	block := &RichBlock{}

	switch {
	case pre != nil && pre.Title != "":
		// A post that already carried a rich block keeps its own title.
		block.Title = pre.Title
	case in.Kind == RepostGallery:
		block.Title = f.galleryTitle(in.ChannelName)
	default:
		block.Title = f.catalog.Format("showcase_title", in.ChannelName)
	}

	// A post whose whole content is a bare link to its own block gets
	// upgraded to URL plus the block's description instead of an empty
	// or redundant body.
	switch {
	case pre == nil || src.Text != pre.URL:
		block.Text = src.Text
	case pre.Text != "":
		block.Text = pre.URL + "\n" + pre.Text
	default:
		block.Text = pre.URL
	}

	switch {
	case pre != nil && pre.ImageURL != "":
		block.ImageURL = pre.ImageURL
	case pre != nil && pre.ThumbURL != "":
		block.ImageURL = pre.ThumbURL
	case len(src.Attachments) > 0:
		block.ImageURL = src.Attachments[0]
	}

	block.AuthorName = in.Author.DisplayName
	block.AuthorIcon = in.Author.AvatarURL
	block.AuthorLink = in.JumpLink
	block.Color = in.Author.Color

	block.URL = in.JumpLink

	if in.PublisherMention != "" {
		block.Pretext = f.catalog.Format("watermark", in.PublisherMention)
	}

	return block
}

func (f *Formatter) galleryTitle(channelName string) string {
	titles := f.catalog.List("gallery_titles")
	if len(titles) == 0 {
		return f.catalog.Format("showcase_title", channelName)
	}
	return fmt.Sprintf(titles[f.pick(len(titles))], channelName)
}
