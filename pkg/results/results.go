// Package results turns raw search hits into display-ready cards. Missing
// payload fields never crash rendering; each one has a documented
// fallback. Order is preserved exactly as returned by the backend, which
// already ranks by relevance.
package results

import (
	"html/template"
	"io"

	"github.com/tyarity/boothlens/pkg/i18n"
	"github.com/tyarity/boothlens/pkg/types"
)

// Fallbacks for absent payload fields.
const (
	FallbackTitle     = "Unknown Item"
	FallbackShop      = "Unknown Shop"
	FallbackURL       = "#"
	FallbackThumbnail = "/static/placeholder.png"
)

// Card is one display-ready result.
type Card struct {
	ID           string
	Score        float64
	Title        string
	Price        int
	ThumbnailURL string
	ShopName     string
	BoothURL     string
}

// Normalize fills in fallbacks for any missing payload field. A nil
// payload yields a card with every fallback applied.
func Normalize(item types.SearchResultItem) Card {
	card := Card{
		ID:           item.ID,
		Score:        item.Score,
		Title:        FallbackTitle,
		Price:        0,
		ThumbnailURL: FallbackThumbnail,
		ShopName:     FallbackShop,
		BoothURL:     FallbackURL,
	}
	p := item.Payload
	if p == nil {
		return card
	}
	if p.Title != "" {
		card.Title = p.Title
	}
	if p.Price > 0 {
		card.Price = p.Price
	}
	if p.ThumbnailURL != "" {
		card.ThumbnailURL = p.ThumbnailURL
	}
	if p.ShopName != "" {
		card.ShopName = p.ShopName
	}
	if p.BoothURL != "" {
		card.BoothURL = p.BoothURL
	}
	return card
}

// NormalizeAll maps Normalize over a result set, keeping order.
func NormalizeAll(items []types.SearchResultItem) []Card {
	cards := make([]Card, len(items))
	for i, item := range items {
		cards[i] = Normalize(item)
	}
	return cards
}

var cardTemplate = template.Must(template.New("results").Parse(`<section class="results">
{{- if .Cards}}
<h2>{{.Heading}}</h2>
<ul class="result-grid">
{{- range .Cards}}
  <li class="result-card">
    <a href="{{.BoothURL}}" rel="noopener">
      <img src="{{.ThumbnailURL}}" alt="{{.Title}}" loading="lazy">
      <h3>{{.Title}}</h3>
    </a>
    <p class="price">&yen;{{.Price}}</p>
    <p class="shop">{{.ShopLabel}}: {{.ShopName}}</p>
    <p class="score">{{.ScoreLabel}}: {{printf "%.2f" .Score}}</p>
  </li>
{{- end}}
</ul>
{{- else}}
<div class="no-results">
  <h2>{{.NoResultsTitle}}</h2>
  <p>{{.NoResultsPromo}}</p>
</div>
{{- end}}
</section>
`))

type cardView struct {
	Card
	ShopLabel  string
	ScoreLabel string
}

type pageView struct {
	Heading        string
	NoResultsTitle string
	NoResultsPromo string
	Cards          []cardView
}

// Renderer writes result cards as HTML. Strings resolve through the
// localization table for the render-time language tag.
type Renderer struct {
	table *i18n.Table
}

// NewRenderer creates a Renderer bound to a localization table.
func NewRenderer(table *i18n.Table) *Renderer {
	return &Renderer{table: table}
}

// Render writes the card list, or the no-results promo block when the
// set is empty. An empty set is a valid display state, not an error.
func (r *Renderer) Render(w io.Writer, lang string, items []types.SearchResultItem) error {
	view := pageView{
		Heading:        r.table.T(lang, "results.heading"),
		NoResultsTitle: r.table.T(lang, "results.noResults.title"),
		NoResultsPromo: r.table.T(lang, "results.noResults.promo"),
	}
	for _, card := range NormalizeAll(items) {
		view.Cards = append(view.Cards, cardView{
			Card:       card,
			ShopLabel:  r.table.T(lang, "results.shop"),
			ScoreLabel: r.table.T(lang, "results.score"),
		})
	}
	return cardTemplate.Execute(w, view)
}
