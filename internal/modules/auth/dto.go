package auth

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=5,max=128"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenPair is the body returned by the token endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// UpdateMeRequest is the body of PUT and PATCH /users/me. PUT additionally
// requires email and password.
type UpdateMeRequest struct {
	Email     *string `json:"email" validate:"omitnil,email,max=255"`
	Password  *string `json:"password" validate:"omitnil,min=5,max=128"`
	FirstName *string `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string `json:"last_name" validate:"omitnil,max=150"`
}

func (r UpdateMeRequest) requireAll() map[string]string {
	missing := map[string]string{}
	if r.Email == nil {
		missing["email"] = "this field is required"
	}
	if r.Password == nil {
		missing["password"] = "this field is required"
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}
