package model

// User is an opaque actor identity supplied by the upstream proxy via
// request headers. Docbox never authenticates a User; it only renders
// the attached name/image on display and stores the ID as a foreign key.
type User struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	ImageID *string `json:"imageId,omitempty"`
}
