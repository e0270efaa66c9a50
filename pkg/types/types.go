package types

import "fmt"

// Rect is a crop rectangle in percentage units [0,100], relative to the
// displayed image dimensions.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Clamp constrains the rectangle to the [0,100] percentage space so that
// X+W <= 100 and Y+H <= 100.
func (r Rect) Clamp() Rect {
	r.W = clamp(r.W, 0, 100)
	r.H = clamp(r.H, 0, 100)
	r.X = clamp(r.X, 0, 100-r.W)
	r.Y = clamp(r.Y, 0, 100-r.H)
	return r
}

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// ToPixels rescales the percentage rectangle into the source image's
// native pixel coordinate space.
func (r Rect) ToPixels(naturalWidth, naturalHeight int) PixelRect {
	return PixelRect{
		X: int(r.X / 100 * float64(naturalWidth)),
		Y: int(r.Y / 100 * float64(naturalHeight)),
		W: int(r.W / 100 * float64(naturalWidth)),
		H: int(r.H / 100 * float64(naturalHeight)),
	}
}

// PixelRect is a crop rectangle in the source image's native pixel space.
type PixelRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"width"`
	H int `json:"height"`
}

// Empty reports whether the rectangle covers no pixels.
func (r PixelRect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r PixelRect) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", r.W, r.H, r.X, r.Y)
}

// ItemPayload holds the display fields attached to an indexed listing
// image. Category, avatars and colors exist for index-side filtering and
// are not rendered on result cards.
type ItemPayload struct {
	Title        string   `json:"title"`
	Price        int      `json:"price"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	ShopName     string   `json:"shopName"`
	BoothURL     string   `json:"boothUrl"`
	Category     string   `json:"category,omitempty"`
	Avatars      []string `json:"avatars,omitempty"`
	Colors       []string `json:"colors,omitempty"`
}

// SearchResultItem is one ranked match returned by the search pipeline.
// Payload is a pointer so a response carrying a null payload still
// decodes; display code goes through results.Normalize for fallbacks.
type SearchResultItem struct {
	ID      string       `json:"id"`
	Score   float64      `json:"score"`
	Payload *ItemPayload `json:"payload"`
}

// SearchResponse is the wire shape of POST /api/search.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
}

// ListingRecord is one scraped marketplace listing, serialized as a JSONL
// line compatible with the seeding pipeline.
type ListingRecord struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Shop        string   `json:"shop"`
	ShopURL     string   `json:"shop_url,omitempty"`
	Price       string   `json:"price"`
	Likes       int      `json:"likes"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images"`
	Avatars     []string `json:"avatars,omitempty"`
	Colors      []string `json:"colors,omitempty"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
