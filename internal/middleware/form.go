package middleware

import (
	"mime"
	"net/http"
)

// IsFormRequest はContent-TypeがHTMLフォーム形式かどうかを返す。
func IsFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}
