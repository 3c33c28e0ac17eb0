// Package model defines domain entities for the application.
package model

import "time"

// User is a registered API consumer. The Token is the only credential.
type User struct {
	ID             string    `json:"userId"`
	Token          string    `json:"token"`
	RequestsNumber int       `json:"requestsNumber"`
	LastRecharge   time.Time `json:"lastRecharge"`
	IP             string    `json:"ip"`
}

// IsFunded reports whether the user still has request credits.
func (u *User) IsFunded() bool {
	return u.RequestsNumber > 0
}
