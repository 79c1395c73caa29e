package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/user"
)

// usernamesCollection reserves lowercased usernames so two profiles can never
// share one.
const usernamesCollection = "usernames"

type UserService struct {
	store docstore.Store
	clock timezone.Clock
}

func NewUserService(store docstore.Store, clock timezone.Clock) *UserService {
	return &UserService{store: store, clock: clock}
}

// CreateUser creates the profile for an authenticated subject id.
func (s *UserService) CreateUser(ctx context.Context, id string, req *user.CreateUserRequest) (*user.User, error) {
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if !timezone.IsValidTimezone(tz) {
		return nil, ErrInvalidTimezone
	}
	if usernameKey(req.Username) == "" || strings.Contains(req.Username, "/") {
		return nil, invalid("username is invalid")
	}

	now := s.clock.Now().UTC()
	u := &user.User{
		ID:              id,
		Username:        req.Username,
		Name:            req.Name,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber:     req.PhoneNumber,
		Height:          req.Height,
		Weight:          req.Weight,
		Age:             req.Age,
		Gender:          req.Gender,
		ActivityLevel:   req.ActivityLevel,
		Timezone:        tz,
		UnitPreferences: user.DefaultUnitPreferences(),
		AvatarURL:       req.AvatarURL,
		Friends:         []string{},
		DateJoined:      now,
		UpdatedAt:       now,
	}
	if req.UnitPreferences != nil {
		u.UnitPreferences = *req.UnitPreferences
	}

	doc, err := docstore.Encode(u)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(usersCollection, id); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return storeErr("failed to check user", err)
		}
		if err := checkUsernameFree(tx, u.Username, id); err != nil {
			return err
		}
		if err := tx.Set(usersCollection, id, doc); err != nil {
			return err
		}
		return tx.Set(usernamesCollection, usernameKey(u.Username), docstore.Document{"user_id": id})
	})
	if err != nil {
		log.Printf("CreateUser: Failed to create user %s: %v", id, err)
		return nil, asServiceError("failed to create user", err)
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return getUser(ctx, s.store, id)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	snaps, err := s.store.QueryEqual(ctx, usersCollection, "email", strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, storeErr("failed to query users", err)
	}
	if len(snaps) == 0 {
		return nil, ErrUserNotFound
	}
	return decodeUser(snaps[0].Data, nil)
}

func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := s.store.Get(ctx, usernamesCollection, usernameKey(username))
	if errors.Is(err, docstore.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, storeErr("failed to check username", err)
	}
	return false, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, req *user.UpdateProfileRequest) (*user.User, error) {
	if req.Timezone != nil && !timezone.IsValidTimezone(*req.Timezone) {
		return nil, ErrInvalidTimezone
	}
	if req.Username != nil && (usernameKey(*req.Username) == "" || strings.Contains(*req.Username, "/")) {
		return nil, invalid("username is invalid")
	}

	var updated *user.User
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		u, err := loadUser(tx, id)
		if err != nil {
			return err
		}
		oldUsername := u.Username
		renamed := req.Username != nil && usernameKey(*req.Username) != usernameKey(oldUsername)
		if renamed {
			if err := checkUsernameFree(tx, *req.Username, id); err != nil {
				return err
			}
		}

		applyProfileUpdate(u, req)
		u.UpdatedAt = s.clock.Now().UTC()

		doc, err := docstore.Encode(u)
		if err != nil {
			return err
		}
		if err := tx.Set(usersCollection, id, doc); err != nil {
			return err
		}
		if renamed {
			if err := tx.Delete(usernamesCollection, usernameKey(oldUsername)); err != nil {
				return err
			}
			if err := tx.Set(usernamesCollection, usernameKey(u.Username), docstore.Document{"user_id": id}); err != nil {
				return err
			}
		}
		updated = u
		return nil
	})
	if err != nil {
		log.Printf("UpdateProfile: Failed to update user %s: %v", id, err)
		return nil, asServiceError("failed to update user", err)
	}
	return updated, nil
}

func applyProfileUpdate(u *user.User, req *user.UpdateProfileRequest) {
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = req.PhoneNumber
	}
	if req.Height != nil {
		u.Height = req.Height
	}
	if req.Weight != nil {
		u.Weight = req.Weight
	}
	if req.Age != nil {
		u.Age = req.Age
	}
	if req.Gender != nil {
		u.Gender = req.Gender
	}
	if req.ActivityLevel != nil {
		u.ActivityLevel = req.ActivityLevel
	}
	if req.Timezone != nil {
		u.Timezone = *req.Timezone
	}
	if req.UnitPreferences != nil {
		u.UnitPreferences = *req.UnitPreferences
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
	}
}

func (s *UserService) UpdateTimezone(ctx context.Context, id, tz string) (*user.User, error) {
	return s.UpdateProfile(ctx, id, &user.UpdateProfileRequest{Timezone: &tz})
}

// Heartbeat records that the user is active.
func (s *UserService) Heartbeat(ctx context.Context, id string, online bool) error {
	err := s.store.Update(ctx, usersCollection, id, docstore.Document{
		"online":         online,
		"last_active_at": s.clock.Now().UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return storeErr("failed to update heartbeat", err)
	}
	return nil
}

// DeleteUser removes the profile, the user from every friend's list, every
// friend request the user took part in and all of the user's sub-collections.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	for _, friendID := range u.Friends {
		err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			friend, err := loadUser(tx, friendID)
			if errors.Is(err, ErrUserNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			friend.Friends = without(friend.Friends, id)
			return tx.Update(usersCollection, friendID, docstore.Document{"friends": friend.Friends})
		})
		if err != nil {
			log.Printf("DeleteUser: Failed to remove %s from %s's friends: %v", id, friendID, err)
		}
	}

	for _, field := range []string{"sender_id", "receiver_id"} {
		snaps, err := s.store.QueryEqual(ctx, friendRequestsCollection, field, id)
		if err != nil {
			log.Printf("DeleteUser: Failed to query friend requests for %s: %v", id, err)
			continue
		}
		for _, snap := range snaps {
			if err := s.store.Delete(ctx, friendRequestsCollection, snap.Key); err != nil {
				log.Printf("DeleteUser: Failed to delete friend request %s: %v", snap.Key, err)
			}
		}
	}

	for _, collection := range userSubcollections(id) {
		snaps, err := s.store.List(ctx, collection)
		if err != nil {
			log.Printf("DeleteUser: Failed to list %s: %v", collection, err)
			continue
		}
		for _, snap := range snaps {
			if err := s.store.Delete(ctx, collection, snap.Key); err != nil {
				log.Printf("DeleteUser: Failed to delete %s/%s: %v", collection, snap.Key, err)
			}
		}
	}

	if err := s.store.Delete(ctx, usernamesCollection, usernameKey(u.Username)); err != nil {
		log.Printf("DeleteUser: Failed to release username %s: %v", u.Username, err)
	}
	if err := s.store.Delete(ctx, usersCollection, id); err != nil {
		return storeErr("failed to delete user", err)
	}
	return nil
}

// SearchUsers matches a case-insensitive prefix of username or name.
func (s *UserService) SearchUsers(ctx context.Context, requesterID, query string, limit int) ([]*user.PublicProfile, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, invalid("search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	snaps, err := s.store.List(ctx, usersCollection)
	if err != nil {
		return nil, storeErr("failed to list users", err)
	}

	results := []*user.PublicProfile{}
	for _, snap := range snaps {
		if snap.Key == requesterID {
			continue
		}
		u, err := decodeUser(snap.Data, nil)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u.Username), q) || strings.HasPrefix(strings.ToLower(u.Name), q) {
			results = append(results, u.Public())
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Username < results[j].Username })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetFriends returns the public profiles of everyone in the user's friend list.
// Ids whose profile no longer exists are skipped.
func (s *UserService) GetFriends(ctx context.Context, id string) ([]*user.PublicProfile, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	friends := make([]*user.PublicProfile, 0, len(u.Friends))
	for _, friendID := range u.Friends {
		f, err := s.GetUser(ctx, friendID)
		if errors.Is(err, ErrUserNotFound) {
			log.Printf("GetFriends: Friend %s of %s has no profile", friendID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		friends = append(friends, f.Public())
	}
	return friends, nil
}

// Timezone returns the user's zone, used by the daily engines.
func (s *UserService) Timezone(ctx context.Context, id string) (string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Timezone, nil
}

func getUser(ctx context.Context, store docstore.Store, id string) (*user.User, error) {
	doc, err := store.Get(ctx, usersCollection, id)
	return decodeUser(doc, err)
}

func loadUser(tx docstore.Tx, id string) (*user.User, error) {
	doc, err := tx.Get(usersCollection, id)
	return decodeUser(doc, err)
}

func decodeUser(doc docstore.Document, err error) (*user.User, error) {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("failed to load user", err)
	}
	var u user.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, storeErr("malformed user document", err)
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	return &u, nil
}

func checkUsernameFree(tx docstore.Tx, username, id string) error {
	doc, err := tx.Get(usernamesCollection, usernameKey(username))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr("failed to check username", err)
	}
	if owner, _ := doc["user_id"].(string); owner == id {
		return nil
	}
	return ErrUsernameTaken
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

// asServiceError passes service errors through and wraps anything else as a
// store failure.
func asServiceError(op string, err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return storeErr(op, err)
}
