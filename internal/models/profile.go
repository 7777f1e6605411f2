// Package models defines the domain types shared by the cache, remote-store,
// catalog, and sync layers.
package models

import "time"

// Profile is a person using the app. Profiles are owned by the remote store;
// the local cache only holds a read mirror. A profile is never mutated after
// creation.
type Profile struct {
	// ID is the server-assigned identifier.
	ID string `json:"id"`

	// Name is the display name shown in the profile picker.
	Name string `json:"name"`

	// CreatedAt is the server-side creation time.
	CreatedAt time.Time `json:"createdAt"`

	// Avatar is an optional object-storage key for the profile picture.
	Avatar *string `json:"avatar,omitempty"`
}
