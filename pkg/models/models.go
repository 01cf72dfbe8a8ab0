package models

// UserSummary is the minimal public profile of a marketplace user, as shown
// next to a conversation. Users themselves are owned by the account service.
type UserSummary struct {
	ID       string  `json:"id" db:"id"`
	Username string  `json:"username" db:"username"`
	Avatar   *string `json:"avatar" db:"avatar"`
}
