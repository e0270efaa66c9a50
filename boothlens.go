// Package boothlens provides visual search over marketplace listings:
// crop a region of an image, embed it with a CLIP model and find the
// closest listings in a vector index.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		"github.com/tyarity/boothlens"
//	)
//
//	func main() {
//		lens := boothlens.New("http://localhost:8080")
//
//		data, err := os.ReadFile("screenshot.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := lens.LoadImage(data); err != nil {
//			log.Fatal(err)
//		}
//
//		// The initial crop is a centered square; adjust it if needed,
//		// then search.
//		results, err := lens.Search(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, item := range results {
//			fmt.Printf("%.3f  %s\n", item.Score, item.Payload.Title)
//		}
//	}
//
// The package consists of these main components:
//
//  1. Crop (pkg/crop): the interactive crop state machine and search flow
//  2. Render (pkg/render): pixel extraction and re-encoding
//  3. Search client (pkg/searchclient): the HTTP call to the search endpoint
//  4. Search service (pkg/search): the server-side pipeline
//  5. Vector store (pkg/vectorstore): Qdrant and in-memory index adapters
//
// The crop state tracks percentages of the displayed image, so the
// selected region is stable under zoom. Committing a crop extracts the
// matching native pixels, re-encodes them and uploads the blob; the
// backend embeds it and returns ranked listing matches.
package boothlens

import (
	"context"
	"fmt"

	"github.com/tyarity/boothlens/pkg/crop"
	"github.com/tyarity/boothlens/pkg/render"
	"github.com/tyarity/boothlens/pkg/searchclient"
	"github.com/tyarity/boothlens/pkg/types"
)

// Version of the boothlens library.
const Version = "1.0.0"

// Lens drives the full client-side flow against a search server: load,
// crop, search. It owns a four-state flow machine, so a search submitted
// while another is in flight is rejected rather than racing.
type Lens struct {
	cropper  *crop.Cropper
	flow     *crop.Flow
	renderer *render.Renderer
	client   *searchclient.Client

	source  []byte
	width   int
	height  int
	results []types.SearchResultItem
}

// New creates a Lens talking to the given search server.
func New(serverURL string) *Lens {
	return &Lens{
		cropper:  crop.New(),
		flow:     crop.NewFlow(),
		renderer: render.New(),
		client:   searchclient.New(serverURL),
	}
}

// State returns the current flow state.
func (l *Lens) State() crop.State {
	return l.flow.State()
}

// Cropper exposes the live crop state for UI adjustment.
func (l *Lens) Cropper() *crop.Cropper {
	return l.cropper
}

// Results returns the last search's result set. It is replaced by the
// next search and cleared on new image selection, never on error.
func (l *Lens) Results() []types.SearchResultItem {
	return l.results
}

// LoadImage decodes an uploaded image and enters the cropping state with
// the initial centered square crop.
func (l *Lens) LoadImage(data []byte) error {
	img, err := render.Decode(data)
	if err != nil {
		return fmt.Errorf("boothlens: load image: %w", err)
	}
	if err := l.flow.Select(); err != nil {
		return err
	}
	bounds := img.Bounds()
	l.source = data
	l.width, l.height = bounds.Dx(), bounds.Dy()
	return l.cropper.Load(l.width, l.height)
}

// Cancel discards the loaded image and returns to idle. No network call
// has been made for the discarded crop.
func (l *Lens) Cancel() error {
	if err := l.flow.CancelCrop(); err != nil {
		return err
	}
	l.cropper.Cancel()
	l.source = nil
	l.width, l.height = 0, 0
	return nil
}

// Search commits the current crop, extracts its pixels and queries the
// server. The flow always ends in Displaying, carrying either results or
// the error for the caller to surface.
func (l *Lens) Search(ctx context.Context) ([]types.SearchResultItem, error) {
	if err := l.flow.Confirm(); err != nil {
		return nil, err
	}
	items, err := l.runSearch(ctx)
	if ferr := l.flow.Finish(); ferr != nil {
		return nil, ferr
	}
	if err != nil {
		return nil, err
	}
	l.results = items
	return items, nil
}

func (l *Lens) runSearch(ctx context.Context) ([]types.SearchResultItem, error) {
	if err := l.cropper.EndDrag(); err != nil {
		return nil, err
	}
	rect, err := l.cropper.PixelCrop()
	if err != nil {
		return nil, err
	}
	blob, err := l.renderer.RenderCrop(l.source, rect)
	if err != nil {
		return nil, fmt.Errorf("boothlens: extract crop: %w", err)
	}
	return l.client.Search(ctx, blob)
}
