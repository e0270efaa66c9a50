package scrape

import "strings"

// AvatarNames maps popular avatar names to the aliases that appear in
// listing titles and descriptions. The canonical name is stored in the
// index for filtering.
var AvatarNames = map[string][]string{
	"桔梗":     {"桔梗", "kikyo"},
	"萌":      {"萌", "moe"},
	"ここあ":    {"ここあ", "cocoa"},
	"セレスティア":  {"セレスティア", "selestia"},
	"マヌカ":    {"マヌカ", "manuka"},
	"森羅":     {"森羅", "shinra"},
	"しなの":    {"しなの", "shinano"},
	"ライム":    {"ライム", "lime"},
	"カリン":    {"カリン", "karin"},
	"ミント":    {"ミント", "mint"},
	"るるね":    {"るるね", "rurune"},
	"瑞希":     {"瑞希", "mizuki"},
	"アズキ":    {"アズキ", "azuki"},
	"シフォン":   {"シフォン", "chiffon"},
	"リーファ":   {"リーファ", "leefa"},
}

// ColorNames maps color tags to their textual aliases.
var ColorNames = map[string][]string{
	"black":  {"black", "黒", "ブラック"},
	"white":  {"white", "白", "ホワイト"},
	"red":    {"red", "赤", "レッド"},
	"blue":   {"blue", "青", "ブルー"},
	"pink":   {"pink", "ピンク", "桃"},
	"purple": {"purple", "紫", "パープル"},
	"green":  {"green", "緑", "グリーン"},
	"yellow": {"yellow", "黄", "イエロー"},
	"brown":  {"brown", "茶", "ブラウン"},
	"gray":   {"gray", "grey", "灰", "グレー"},
}

// MatchKeywords returns the canonical names whose aliases appear in the
// text, preserving no particular order.
func MatchKeywords(text string, table map[string][]string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for name, aliases := range table {
		for _, alias := range aliases {
			if strings.Contains(lower, strings.ToLower(alias)) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}
