package model

// Role はユーザーのロールを表す。
// 値は user, organizer, admin の3種類に閉じている。
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return true
	default:
		return false
	}
}

// SignUpRoles はサインアップ時にヒントとして指定できるロール。
// admin はプロフィールへの直接付与でのみ割り当てられる。
var SignUpRoles = []Role{RoleUser, RoleOrganizer}

// AllRoles は定義済みの全ロール。
var AllRoles = []Role{RoleUser, RoleOrganizer, RoleAdmin}
