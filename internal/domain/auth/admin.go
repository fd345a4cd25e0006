package auth

// Admin は設定で与えられる唯一の管理者アカウント
// PasswordHash（bcrypt）が設定されている場合は Password より優先する
type Admin struct {
	Username     string
	Password     string
	PasswordHash string
}

// IsConfigured は照合に必要な値が揃っているかを返す
func (a Admin) IsConfigured() bool {
	return a.Username != "" && (a.Password != "" || a.PasswordHash != "")
}
