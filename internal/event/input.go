package event

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/hitoshi/magicalmoments/internal/model"
)

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Input は主催者パネルのイベント登録・更新フォームの入力。
type Input struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Capacity    int     `json:"capacity"`
	ImageURL    string  `json:"image_url"`
	Features    string  `json:"features"`
}

// Validate はイベント入力を検証する。
func (in Input) Validate() error {
	categories := make([]interface{}, 0, len(model.EventCategories))
	for _, c := range model.EventCategories {
		categories = append(categories, c)
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 10000)),
		validation.Field(&in.Category, validation.Required, validation.In(categories...)),
		validation.Field(&in.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&in.Time, validation.Match(timePattern)),
		validation.Field(&in.Location, validation.Length(0, 255)),
		validation.Field(&in.Price, validation.Min(0.0)),
		validation.Field(&in.Capacity, validation.Min(0)),
		validation.Field(&in.ImageURL, validation.Length(0, 2048), is.URL),
		validation.Field(&in.Features, validation.Length(0, 1000)),
	)
}

// normalizeFeatures はカンマ区切りの特徴を前後空白と空要素を除いて整形する。
func normalizeFeatures(raw string) string {
	e := model.Event{Features: raw}
	return strings.Join(e.FeatureList(), ", ")
}
