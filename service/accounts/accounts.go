package accounts

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/models"
	"github.com/commitly/commitly/service/github"
	"github.com/commitly/commitly/service/profile"
)

// Service resolves provider identities into local accounts. It implements
// the token receiver side of the OAuth flow: given a fresh access token it
// finds or creates the profile and links the GitHub login to it.
type Service struct {
	github   *github.Service
	profiles *profile.Service
	db       *db.DB
	logger   *log.Logger
}

func NewService(gh *github.Service, profiles *profile.Service, database *db.DB) *Service {
	return &Service{
		github:   gh,
		profiles: profiles,
		db:       database,
		logger:   log.New(os.Stdout, "accounts: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// userIDFor derives the stable local user identifier from the provider
// account. The numeric GitHub ID survives login renames.
func userIDFor(ghUser *models.GitHubUser) string {
	return "github:" + strconv.FormatInt(ghUser.ID, 10)
}

// SetAccessToken resolves the token's owner, ensures a profile exists and
// keeps the linked login and display metadata current.
func (s *Service) SetAccessToken(token string) (string, *models.AuthUser, error) {
	ctx := context.Background()

	ghUser, err := s.github.GetAuthenticatedUser(ctx, token)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve token owner: %w", err)
	}

	userID := userIDFor(ghUser)

	seed := &models.Profile{Username: &ghUser.Login}
	if ghUser.Name != "" {
		seed.Name = &ghUser.Name
	}
	if ghUser.AvatarURL != "" {
		seed.AvatarURL = &ghUser.AvatarURL
	}

	p, err := s.profiles.GetOrCreateProfile(ctx, userID, seed)
	if err != nil {
		return "", nil, fmt.Errorf("failed to ensure profile for user %s: %w", userID, err)
	}

	// returning users may have renamed their GitHub account or changed
	// their avatar since the profile was created
	if p.Username == nil || *p.Username != ghUser.Login {
		if _, err := s.profiles.UpdateGitHubUsername(ctx, userID, ghUser.Login); err != nil {
			s.logger.Printf("Error relinking github login for user %s: %v", userID, err)
		}
	}
	if _, err := s.db.UpdateIdentity(ctx, p.ID, seed.Name, seed.AvatarURL); err != nil {
		s.logger.Printf("Error refreshing identity for user %s: %v", userID, err)
	}

	user := &models.AuthUser{ID: userID}
	if ghUser.Name != "" {
		user.Name = &ghUser.Name
	}
	if ghUser.Email != "" {
		user.Email = &ghUser.Email
	}
	if ghUser.AvatarURL != "" {
		user.AvatarURL = &ghUser.AvatarURL
	}

	return userID, user, nil
}
