// Package i18n resolves user-visible strings from static en/ja message
// tables. Lookup is by dotted key path; unknown language tags fall back
// to English.
package i18n

import (
	"embed"
	"encoding/json"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultTag is the fallback language.
const DefaultTag = "en"

// Tags is the closed set of supported language tags.
var Tags = []string{"en", "ja"}

// Table resolves message IDs for the supported languages. Construct one
// at application root and pass it to whatever renders text; there is no
// ambient lookup.
type Table struct {
	bundle     *goi18n.Bundle
	localizers map[string]*goi18n.Localizer
}

// New loads the embedded message files.
func New() (*Table, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, tag := range Tags {
		data, err := localeFS.ReadFile("locales/" + tag + ".json")
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, tag+".json"); err != nil {
			return nil, err
		}
	}

	localizers := make(map[string]*goi18n.Localizer, len(Tags))
	for _, tag := range Tags {
		localizers[tag] = goi18n.NewLocalizer(bundle, tag, DefaultTag)
	}
	return &Table{bundle: bundle, localizers: localizers}, nil
}

// Supported reports whether tag is one of the closed language set.
func (t *Table) Supported(tag string) bool {
	_, ok := t.localizers[tag]
	return ok
}

// T resolves a dotted message ID for the given language tag. Unknown tags
// resolve as English; an unknown ID returns the ID itself so a missing
// message never blanks the UI.
func (t *Table) T(tag, id string) string {
	loc, ok := t.localizers[tag]
	if !ok {
		loc = t.localizers[DefaultTag]
	}
	msg, err := loc.Localize(&goi18n.LocalizeConfig{MessageID: id})
	if err != nil {
		return id
	}
	return msg
}
