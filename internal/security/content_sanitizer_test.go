package security

import (
	"strings"
	"testing"
)

func TestDescription_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{"pタグが許可される", "<p>夜のジャズ</p>", []string{"<p>夜のジャズ</p>"}},
		{"brタグが許可される", "1部<br>2部", []string{"<br", "1部", "2部"}},
		{"リストが許可される", "<ul><li>飲み放題</li><li>駐車場</li></ul>", []string{"<ul>", "<li>飲み放題</li>", "</ul>"}},
		{"強調が許可される", "<strong>完売間近</strong><em>屋外</em>", []string{"<strong>完売間近</strong>", "<em>屋外</em>"}},
		{"httpsリンクにtargetとrelが付与される", `<a href="https://tickets.example.com">チケット</a>`,
			[]string{`href="https://tickets.example.com"`, `target="_blank"`, "noreferrer", "チケット"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Description(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Description(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

func TestDescription_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"scriptタグ", `<p>Hi</p><script>alert("xss")</script>`, []string{"<script", "alert"}},
		{"iframeタグ", `<iframe src="https://evil.example.com"></iframe>`, []string{"<iframe"}},
		{"styleタグ", `<style>body{display:none}</style>`, []string{"<style", "display:none"}},
		{"onイベント属性", `<p onclick="steal()">Hi</p>`, []string{"onclick", "steal"}},
		{"javascriptスキーム", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"httpリンク", `<a href="http://plain.example.com">x</a>`, []string{"http://plain.example.com"}},
		{"画像タグ", `<img src="https://example.com/a.png">`, []string{"<img"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Description(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Description(%q) = %q, must not contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

func TestDescription_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := `<p>Live <strong>music</strong> &amp; food</p><script>x()</script>`

	once := sanitizer.Description(input)
	twice := sanitizer.Description(once)
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestTitle_StripsMarkup(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"Jazz Night", "Jazz Night"},
		{"  <b>Jazz</b> Night  ", "Jazz Night"},
		{"Art & Culture Walk", "Art & Culture Walk"},
		{`<script>alert(1)</script>Show`, "Show"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;Show", "Show"},
		{"&lt;b&gt;Jazz&lt;/b&gt; Night", "Jazz Night"},
		{`Tom's "Live" Set`, `Tom's "Live" Set`},
		{"Rock &amp; Roll", "Rock & Roll"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizer.Title(tt.input); got != tt.want {
				t.Errorf("Title(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTitle_EntityEncodedMarkupNeverBecomesTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	inputs := []string{
		"&lt;script&gt;x&lt;/script&gt;",
		"&lt;&lt;b&gt;script&gt;alert(1)",
		"&amp;lt;img src=x onerror=alert(1)&amp;gt;",
		"&#60;iframe src=https://example.com&#62;",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got := sanitizer.Title(input)
			if strings.ContainsAny(got, "<>") {
				t.Errorf("Title(%q) = %q, must not contain markup characters", input, got)
			}
		})
	}
}
