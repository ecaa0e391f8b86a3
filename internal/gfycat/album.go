package gfycat

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"
)

// SnapshotTTL is how long a fetched album is served before it is fetched
// again. It is independent of the token lifetime.
const SnapshotTTL = 24 * time.Hour

// Item is one published album entry. Only the fields used here are parsed;
// the full object is kept verbatim in Raw.
type Item struct {
	ID     string
	Name   string
	Title  string
	Mp4URL string

	Raw json.RawMessage
}

type itemFields struct {
	GfyID   string `json:"gfyId"`
	GfyName string `json:"gfyName"`
	Title   string `json:"title"`
	Mp4URL  string `json:"mp4Url"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var f itemFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.GfyID == "" {
		return fmt.Errorf("album item has no gfyId")
	}

	i.ID = f.GfyID
	i.Name = f.GfyName
	i.Title = f.Title
	i.Mp4URL = f.Mp4URL
	i.Raw = append(json.RawMessage(nil), data...)

	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	return json.Marshal(itemFields{
		GfyID:   i.ID,
		GfyName: i.Name,
		Title:   i.Title,
		Mp4URL:  i.Mp4URL,
	})
}

// URL is the public page of the item on host.
func (i Item) URL(host string) string {
	return fmt.Sprintf("https://%s/%s", host, i.ID)
}

// Collection is the ordered list of items in an album.
type Collection []Item

// Pick chooses one item uniformly at random. A nil source uses the shared
// math/rand/v2 generator.
func (c Collection) Pick(src *rand.Rand) (Item, error) {
	if len(c) == 0 {
		return Item{}, ErrEmptyCollection
	}

	var n int
	if src == nil {
		n = rand.IntN(len(c))
	} else {
		n = src.IntN(len(c))
	}

	return c[n], nil
}

// albumResponse is the album endpoint's reply.
type albumResponse struct {
	PublishedGfys Collection `json:"publishedGfys"`
}

// Snapshot is a complete copy of the album as fetched at FetchedAt. It is
// replaced wholesale and never updated in place.
type Snapshot struct {
	Items     Collection
	FetchedAt time.Time
}

// Fresh reports whether the snapshot may still be served at now.
func (s Snapshot) Fresh(now time.Time) bool {
	return now.Sub(s.FetchedAt) < SnapshotTTL
}
