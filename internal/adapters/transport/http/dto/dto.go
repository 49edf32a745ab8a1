package dto

type InviteDTO struct {
	Email string `json:"email" validate:"required,email"`
}

// InviteToken never comes from the JSON body: the transport lifts it out of
// the Authorization header before calling the workflow.
type RegisterDTO struct {
	InviteToken string `json:"-"`
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email"    validate:"required,email"`
	Password    string `json:"password" validate:"required"`
}

type LoginDTO struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshToken is read from the refresh_token cookie, not from the body.
type RefreshDTO struct {
	RefreshToken string `json:"-"`
}
