package domain

import "sync"

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Role      string `json:"role"`
}

// IdentityContext holds the current authenticated user, if any.
// It decides which cart storage is authoritative.
type IdentityContext struct {
	mu   sync.RWMutex
	user *User
}

func NewIdentityContext() *IdentityContext {
	return &IdentityContext{}
}

func (c *IdentityContext) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

func (c *IdentityContext) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *IdentityContext) SetUser(u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
}

func (c *IdentityContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
}
