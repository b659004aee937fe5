// Package selection tracks which candidate images the operator has picked for
// each product. Items come from two provenances: remote source URLs and
// locally uploaded payloads. Identity is per-variant, never across variants.
package selection

// Kind discriminates the two item variants.
type Kind string

const (
	KindURL    Kind = "url"
	KindUpload Kind = "upload"
)

// Item is one selected image. Exactly one of URL or Data is set, according to
// Type. Two items are equal when their types match and the populated field
// matches exactly.
type Item struct {
	Type Kind   `json:"type"`
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
}

// URLItem builds a url-variant item referencing a source by its image URL.
func URLItem(url string) Item {
	return Item{Type: KindURL, URL: url}
}

// UploadItem builds an upload-variant item from an inline-encoded payload.
func UploadItem(data string) Item {
	return Item{Type: KindUpload, Data: data}
}

func (i Item) equal(other Item) bool {
	if i.Type != other.Type {
		return false
	}
	switch i.Type {
	case KindURL:
		return i.URL == other.URL
	case KindUpload:
		return i.Data == other.Data
	}
	return false
}

// Selection holds the per-product ordered item lists. Within one product the
// first-toggled item stays first; no duplicates exist under the per-variant
// identity rule. The zero map is created lazily.
type Selection struct {
	byProduct map[string][]Item
}

func New() *Selection {
	return &Selection{byProduct: make(map[string][]Item)}
}

// Toggle removes the item if an equal one is already selected for the
// product, otherwise appends it.
func (s *Selection) Toggle(productID string, item Item) {
	list := s.byProduct[productID]
	for idx, existing := range list {
		if existing.equal(item) {
			s.byProduct[productID] = append(list[:idx:idx], list[idx+1:]...)
			return
		}
	}
	s.byProduct[productID] = append(list, item)
}

// IsSelected reports whether an equal item is selected for the product.
func (s *Selection) IsSelected(productID string, item Item) bool {
	for _, existing := range s.byProduct[productID] {
		if existing.equal(item) {
			return true
		}
	}
	return false
}

// AddUpload appends an upload-variant item unconditionally. Re-uploading
// identical bytes produces a duplicate entry; removal goes through Toggle.
func (s *Selection) AddUpload(productID, data string) {
	s.byProduct[productID] = append(s.byProduct[productID], UploadItem(data))
}

// Seed replaces the product's selection with url items for the given image
// URLs. Used once at catalog load time for the initial pre-selected sources.
func (s *Selection) Seed(productID string, urls []string) {
	items := make([]Item, 0, len(urls))
	for _, u := range urls {
		items = append(items, URLItem(u))
	}
	s.byProduct[productID] = items
}

// Items returns a copy of the product's selection in toggle order.
func (s *Selection) Items(productID string) []Item {
	list := s.byProduct[productID]
	out := make([]Item, len(list))
	copy(out, list)
	return out
}

// Count returns the number of items selected for the product.
func (s *Selection) Count(productID string) int {
	return len(s.byProduct[productID])
}

// Split returns the product's selected source URLs and upload payloads as two
// ordered lists, the shape the generation call expects.
func (s *Selection) Split(productID string) (urls, uploads []string) {
	for _, item := range s.byProduct[productID] {
		switch item.Type {
		case KindURL:
			urls = append(urls, item.URL)
		case KindUpload:
			uploads = append(uploads, item.Data)
		}
	}
	return urls, uploads
}
