package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/store"
)

// ErrInvalidPreferences: the preferences payload is not a JSON object.
var ErrInvalidPreferences = errors.New("invalid_preferences")

// ProfileService reads and mutates the caller's own account.
type ProfileService struct {
	Store store.Store
}

func (s *ProfileService) Get(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ProfileUpdate carries the mutable profile fields. Nil means leave
// untouched.
type ProfileUpdate struct {
	Name        *string
	Picture     *string
	Preferences json.RawMessage
}

// Update applies the supplied fields and returns the fresh record.
func (s *ProfileService) Update(ctx context.Context, userID string, upd ProfileUpdate) (domain.User, error) {
	if upd.Preferences != nil && !isJSONObject(upd.Preferences) {
		return domain.User{}, ErrInvalidPreferences
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return ErrInvalidProfileName
			}
			if err := tx.Users().UpdateName(ctx, userID, name); err != nil {
				return err
			}
		}
		if upd.Picture != nil {
			if err := tx.Users().UpdatePicture(ctx, userID, *upd.Picture); err != nil {
				return err
			}
		}
		if upd.Preferences != nil {
			if err := tx.Users().UpdatePreferences(ctx, userID, upd.Preferences); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	return s.Store.Users().GetUserByID(ctx, userID)
}

// ErrInvalidProfileName: a blank display name.
var ErrInvalidProfileName = errors.New("invalid_name")

func isJSONObject(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	return json.Unmarshal(raw, &m) == nil
}
