package models

import "fmt"

// Actor is the authenticated party invoking an operation, resolved once by
// the API layer and passed explicitly into every lifecycle call.
type Actor struct {
	Role string `json:"role"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%d", a.Role, a.ID)
}

func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }
func (a Actor) IsProvider() bool { return a.Role == RoleProvider }
