package model

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name         string `json:"name" validate:"omitempty,max=200"`
	Email        string `json:"email" validate:"required,email"`
	MembershipID string `json:"membership_id" validate:"omitempty,max=64"`
	Password     string `json:"password" validate:"required"`
	Role         string `json:"role"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CreateBookRequest struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	ISBN            string `json:"isbn" validate:"required"`
	PublicationYear int    `json:"publication_year" validate:"required,gte=1,lte=9999"`
}
