package models

// Profile is the read-only snapshot of a user produced by the profile
// collaborator. The core never mutates these rows.
type Profile struct {
	ID         int64  `db:"id" json:"id"`
	Username   string `db:"username" json:"username"`
	FirstName  string `db:"first_name" json:"firstName"`
	LastName   string `db:"last_name" json:"lastName"`
	AvatarPath string `db:"avatar_path" json:"avatarPath,omitempty"`
	Bio        string `db:"bio" json:"bio,omitempty"`
}

// UserCounters are the denormalized per-user unread totals. They must equal
// the sum of unread flags across the user's conversations and notifications.
type UserCounters struct {
	UserID              int64 `db:"user_id" json:"userId"`
	UnreadMessages      int   `db:"unread_messages" json:"unreadMessagesCount"`
	UnreadNotifications int   `db:"unread_notifications" json:"unreadNotificationsCount"`
}
