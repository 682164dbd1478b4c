// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は主催者が入力したイベントの説明文とタイトルをサニタイズする。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はイベント入力のサニタイズ機能のインターフェースを定義する。
type ContentSanitizer interface {
	// Description は説明文のHTMLをサニタイズする。
	// 許可タグ（p, br, a, ul, ol, li, strong, em）のみを通過させ、
	// aタグのhrefはhttpsのみ許可し、target="_blank"とrel="noopener noreferrer"を付与する。
	Description(rawHTML string) string

	// Title はタイトルから全てのマークアップを除去し、前後の空白を取り除く。
	Title(raw string) string
}

type contentSanitizer struct {
	description *bluemonday.Policy
	strict      *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		description: p,
		strict:      bluemonday.StrictPolicy(),
	}
}

// Description は説明文のHTMLをサニタイズする。
func (s *contentSanitizer) Description(rawHTML string) string {
	return strings.TrimSpace(s.description.Sanitize(rawHTML))
}

// plainTextEntities はStrictPolicyが出力する文字実体のうち、マークアップを生まないもの。
var plainTextEntities = strings.NewReplacer("&amp;", "&", "&#34;", `"`, "&#39;", "'")

// Title はタイトルからマークアップを除去する。
// 文字実体で書かれたタグも除去するため、先にデコードしてからStrictPolicyを適用する。
// &lt; と &gt; はエスケープしたまま残す。
func (s *contentSanitizer) Title(raw string) string {
	return strings.TrimSpace(plainTextEntities.Replace(s.strict.Sanitize(html.UnescapeString(raw))))
}
