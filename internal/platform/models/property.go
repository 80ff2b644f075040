package models

// Property is the ownership projection of a marketplace listing.
type Property struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
}
