package user

import "time"

type UnitPreferences struct {
	Weight   string `json:"weight"`
	Height   string `json:"height"`
	Distance string `json:"distance"`
	Energy   string `json:"energy"`
	Water    string `json:"water"`
}

func DefaultUnitPreferences() UnitPreferences {
	return UnitPreferences{Weight: "kg", Height: "cm", Distance: "km", Energy: "kcal", Water: "ml"}
}

// User is the profile document stored in the "users" collection, keyed by the
// auth provider's subject id. Friends is kept symmetric by the friendship service.
type User struct {
	ID              string          `json:"id"`
	Username        string          `json:"username"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	PhoneNumber     *string         `json:"phone_number"`
	Height          *float64        `json:"height"`
	Weight          *float64        `json:"weight"`
	Age             *int            `json:"age"`
	Gender          *string         `json:"gender"`
	ActivityLevel   *string         `json:"activity_level"`
	Timezone        string          `json:"timezone"`
	UnitPreferences UnitPreferences `json:"unit_preferences"`
	AvatarURL       string          `json:"avatar_url"`
	Friends         []string        `json:"friends"`
	Online          bool            `json:"online"`
	LastActiveAt    *time.Time      `json:"last_active_at"`
	DateJoined      time.Time       `json:"date_joined"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasFriend reports whether id is in u's friend list.
func (u *User) HasFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// PublicProfile is what other users see.
type PublicProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Online    bool   `json:"online"`
}

func (u *User) Public() *PublicProfile {
	return &PublicProfile{ID: u.ID, Username: u.Username, Name: u.Name, AvatarURL: u.AvatarURL, Online: u.Online}
}
