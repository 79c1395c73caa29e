package user

type CreateUserRequest struct {
	Username        string           `json:"username" validate:"required,min=3,max=30,alphanum"`
	Name            string           `json:"name" validate:"required,max=100"`
	Email           string           `json:"email" validate:"required,email"`
	PhoneNumber     *string          `json:"phone_number,omitempty"`
	Height          *float64         `json:"height,omitempty" validate:"omitempty,gt=0"`
	Weight          *float64         `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Age             *int             `json:"age,omitempty" validate:"omitempty,gt=0,lt=150"`
	Gender          *string          `json:"gender,omitempty"`
	ActivityLevel   *string          `json:"activity_level,omitempty"`
	Timezone        string           `json:"timezone,omitempty"`
	UnitPreferences *UnitPreferences `json:"unit_preferences,omitempty"`
	AvatarURL       string           `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

type UpdateProfileRequest struct {
	Username        *string          `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum"`
	Name            *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	PhoneNumber     *string          `json:"phone_number,omitempty"`
	Height          *float64         `json:"height,omitempty" validate:"omitempty,gt=0"`
	Weight          *float64         `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Age             *int             `json:"age,omitempty" validate:"omitempty,gt=0,lt=150"`
	Gender          *string          `json:"gender,omitempty"`
	ActivityLevel   *string          `json:"activity_level,omitempty"`
	Timezone        *string          `json:"timezone,omitempty"`
	UnitPreferences *UnitPreferences `json:"unit_preferences,omitempty"`
	AvatarURL       *string          `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

type UsernameAvailableResponse struct {
	Available bool `json:"available"`
}

type SearchResponse struct {
	Results []*PublicProfile `json:"results"`
}

type UpdateTimezoneRequest struct {
	Timezone string `json:"timezone" validate:"required"`
}

type HeartbeatRequest struct {
	Online *bool `json:"online,omitempty"`
}
