package event

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// 絞り込みなしを表すカテゴリ値
const (
	CategoryAll   = "All Categories"
	CategoryToday = "Today"
)

// Filter はカテゴリと検索語でイベントを絞り込む。today は YYYY-MM-DD 形式の当日。
// カテゴリは大文字小文字を区別せず、" & " を空白と同一視して比較する。
// 検索語はタイトルまたは説明文のテキストに対する部分一致。
func Filter(events []*model.Event, category, search, today string) []*model.Event {
	category = strings.TrimSpace(category)
	search = strings.ToLower(strings.TrimSpace(search))

	result := make([]*model.Event, 0, len(events))
	for _, e := range events {
		if !matchCategory(e, category, today) {
			continue
		}
		if search != "" && !matchSearch(e, search) {
			continue
		}
		result = append(result, e)
	}
	return result
}

func matchCategory(e *model.Event, category, today string) bool {
	switch {
	case category == "" || strings.EqualFold(category, CategoryAll):
		return true
	case strings.EqualFold(category, CategoryToday):
		return e.Date == today
	default:
		return normalizeCategory(e.Category) == normalizeCategory(category)
	}
}

func normalizeCategory(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " & ", " "))
}

func matchSearch(e *model.Event, search string) bool {
	if strings.Contains(strings.ToLower(e.Title), search) {
		return true
	}
	return strings.Contains(strings.ToLower(TextContent(e.Description)), search)
}

// TextContent はHTML断片からテキストのみを取り出す。script/style の中身は含めない。
func TextContent(fragment string) string {
	if fragment == "" {
		return ""
	}

	var b strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if isRawTextTag(z) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isRawTextTag(z) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
