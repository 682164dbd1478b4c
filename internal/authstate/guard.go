package authstate

import "github.com/hitoshi/magicalmoments/internal/model"

// LandingPath は権限不足時のリダイレクト先。
const LandingPath = "/"

// Outcome はルートガードの判定結果。
type Outcome int

const (
	// Render は要求されたビューを表示する。
	Render Outcome = iota
	// RenderAuthEntry は同じルートで認証画面を表示する。
	RenderAuthEntry
	// Redirect はLandingPathへリダイレクトする。
	Redirect
)

// String はメトリクスとログ用の名前を返す。
func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case RenderAuthEntry:
		return "auth_entry"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision はルートガードの判定。Redirectの場合のみLocationが設定される。
type Decision struct {
	Outcome  Outcome
	Location string
}

// Evaluate は認証状態と要求ロールからアクセス可否を判定する。
//
// user を要求するルートはセッションがあれば表示し、なければ認証画面を表示する。
// それ以外のロールはセッションがあり、かつ解決済みロールが完全一致する場合のみ表示し、
// それ以外はLandingPathへリダイレクトする。未解決のロールは権限なしとして扱う。
func Evaluate(state State, required model.Role) Decision {
	if required == model.RoleUser {
		if state.Authenticated() {
			return Decision{Outcome: Render}
		}
		return Decision{Outcome: RenderAuthEntry}
	}

	if state.Authenticated() && state.Resolved && required.Valid() && state.Role == required {
		return Decision{Outcome: Render}
	}
	return Decision{Outcome: Redirect, Location: LandingPath}
}
