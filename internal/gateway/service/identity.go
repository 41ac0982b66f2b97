package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/pkg/idx"
	"github.com/chatterhq/gateway/pkg/slogx"
)

var (
	// ErrProviderConflict: the email belongs to an account already
	// linked to a different provider.
	ErrProviderConflict = errors.New("provider_conflict")

	// ErrAlreadyLinked: the account already carries a provider linkage.
	ErrAlreadyLinked = errors.New("already_linked")

	// ErrIdentityInUse: the external identity is linked to some other
	// account.
	ErrIdentityInUse = errors.New("identity_in_use")

	// ErrLastCredential: unlinking would leave the account with no way
	// to sign in.
	ErrLastCredential = errors.New("last_credential")
)

// IdentityService maps verified provider profiles onto local accounts.
type IdentityService struct {
	Store store.Store
}

// Resolve finds or creates the account for a verified profile.
//
// Lookup order: the external identity first, then the email. A match on
// email links the identity onto that account, unless the account is
// already linked to a different provider. No match creates a fresh
// OAuth-only account. Resolving the same profile twice lands on the
// same account.
func (s *IdentityService) Resolve(ctx context.Context, p domain.VerifiedProfile) (domain.User, bool, error) {
	l := slogx.FromContext(ctx)
	p.Email = NormalizeEmail(p.Email)

	user, err := s.Store.Users().GetUserByOAuth(ctx, p.Provider, p.ExternalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, false, err
	}

	user, err = s.Store.Users().GetUserByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if user.OAuthLinked() {
			// The identity lookup above missed, so the linkage points
			// at a different provider or external id.
			l.Info("oauth resolve refused, email bound to another provider",
				slog.String("provider", string(p.Provider)),
				slog.String("linked_provider", string(user.OAuthProvider)))
			return domain.User{}, false, ErrProviderConflict
		}
		if err := s.attachIdentity(ctx, user.ID, p); err != nil {
			return domain.User{}, false, err
		}
		user, err = s.Store.Users().GetUserByID(ctx, user.ID)
		return user, false, err

	case errors.Is(err, store.ErrNotFound):
		user, err = s.createFromProfile(ctx, p)
		if err != nil {
			return domain.User{}, false, err
		}
		l.Info("oauth account created",
			slog.String("user_id", user.ID),
			slog.String("provider", string(p.Provider)))
		return user, true, nil

	default:
		return domain.User{}, false, err
	}
}

// attachIdentity links the profile onto an existing account and absorbs
// profile fields the account is missing.
func (s *IdentityService) attachIdentity(ctx context.Context, userID string, p domain.VerifiedProfile) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetOAuthLink(ctx, userID, p.Provider, p.ExternalID); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return linkConflict(ctx, tx, userID, p)
			}
			return err
		}
		// The provider vouched for the address.
		if err := tx.Users().MarkEmailVerified(ctx, userID); err != nil {
			return err
		}
		if p.Picture != "" {
			if err := tx.Users().UpdatePicture(ctx, userID, p.Picture); err != nil {
				return err
			}
		}
		return nil
	})
}

// linkConflict names the race that beat a refused link: either this
// account picked up a linkage since it was checked, or another account
// holds the identity.
func linkConflict(ctx context.Context, tx store.Tx, userID string, p domain.VerifiedProfile) error {
	user, err := tx.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.OAuthProvider == p.Provider && user.OAuthID == p.ExternalID {
		return nil
	}
	if user.OAuthLinked() {
		return ErrAlreadyLinked
	}
	return ErrIdentityInUse
}

func (s *IdentityService) createFromProfile(ctx context.Context, p domain.VerifiedProfile) (domain.User, error) {
	name := p.Name
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}

	user := domain.User{
		ID:            idx.New().String(),
		Email:         p.Email,
		Name:          name,
		Role:          domain.RoleUser,
		OAuthProvider: p.Provider,
		OAuthID:       p.ExternalID,
		Picture:       p.Picture,
		EmailVerified: true,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, user.ID)
}

// LinkAccount attaches a provider identity to a signed-in account.
// Re-linking the identity it already has is a no-op; any other identity
// on an already-linked account is refused, as is an identity that some
// other account holds. The unique index arbitrates concurrent links, so
// at most one account ever wins a given identity.
func (s *IdentityService) LinkAccount(ctx context.Context, userID string, p domain.VerifiedProfile) error {
	p.Email = NormalizeEmail(p.Email)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.OAuthLinked() {
		if user.OAuthProvider == p.Provider && user.OAuthID == p.ExternalID {
			return nil
		}
		return ErrAlreadyLinked
	}

	return s.attachIdentity(ctx, userID, p)
}

// UnlinkAccount removes the provider identity. Unlinking an account
// with nothing linked is a no-op; unlinking one with no password is
// refused so the account stays reachable.
func (s *IdentityService) UnlinkAccount(ctx context.Context, userID string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.OAuthLinked() {
		return nil
	}
	if !user.HasPassword() {
		return ErrLastCredential
	}

	return s.Store.Users().ClearOAuthLink(ctx, userID)
}
