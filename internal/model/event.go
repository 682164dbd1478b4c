package model

import (
	"strings"
	"time"
)

// Event は主催者が登録したイベントを表す。
// Date は YYYY-MM-DD、Time は HH:MM 形式の文字列で保持する。
type Event struct {
	ID            string
	Title         string
	Description   string
	Category      string
	Date          string
	Time          string
	Location      string
	Price         float64
	Capacity      int
	ImageURL      string
	OrganizerID   string
	OrganizerName string
	Features      string // カンマ区切り
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeatureList はカンマ区切りの Features を前後空白を除いたリストに変換する。
func (e *Event) FeatureList() []string {
	if strings.TrimSpace(e.Features) == "" {
		return []string{}
	}
	parts := strings.Split(e.Features, ",")
	features := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := strings.TrimSpace(p); f != "" {
			features = append(features, f)
		}
	}
	return features
}

// EventCategories は主催者が選択できるイベントカテゴリ。
var EventCategories = []string{
	"Music",
	"This Food & Drink",
	"Tech",
	"Sports",
	"Art & Culture",
	"Education",
}
