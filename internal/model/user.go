package model

// User is the Auth-service profile of the signed-in operator.
type User struct {
	ID          string `json:"id"`
	UserName    string `json:"userName"`
	CreatedAt   string `json:"createdAt"`
	LastLoginAt string `json:"lastLoginAt"`
	IsActive    bool   `json:"isActive"`
}

// AuthResponse is the Auth-service login payload. The token never
// reaches the browser as a body field; it travels in the HttpOnly
// cookie the gateway sets.
type AuthResponse struct {
	Success bool    `json:"success"`
	Token   string  `json:"token"`
	Error   *string `json:"error"`
	User    *User   `json:"user"`
}
