package models

import "gorm.io/datatypes"

// User is an account identified by its LNURL-auth linking key.
type User struct {
	ID string `gorm:"primaryKey;type:text"` // UUID.

	LnurlAuthKey string `gorm:"type:text;not null;uniqueIndex"` // Wallet linking key (hex).

	Created int64 `gorm:"not null"` // Unix timestamp.

	Profile *datatypes.JSONType[Profile]

	// AllowedRefreshTokens is the ordered allow-list of currently valid
	// refresh tokens. It grows with every login and is pruned on logout
	// and rotation only.
	AllowedRefreshTokens datatypes.JSONSlice[string]
}

// Profile holds optional user-provided account details.
type Profile struct {
	AccountName string `json:"accountName"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// ProfileData returns the profile payload or a zero value.
func (u *User) ProfileData() Profile {
	if u.Profile == nil {
		return Profile{}
	}
	return u.Profile.Data()
}

// SetProfilePayload stores the profile on the user.
func (u *User) SetProfilePayload(profile Profile) {
	wrapped := datatypes.NewJSONType(profile)
	u.Profile = &wrapped
}
