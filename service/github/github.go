package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/commitly/commitly/models"
)

const (
	defaultPerPage = 20 // repos per page, sorted by update time
)

// Service is a client for the GitHub REST and GraphQL APIs plus the
// third-party streak aggregator. The token is optional; without it the
// client runs against the unauthenticated rate limit.
type Service struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
	graphqlURL string
	streakURL  string
	token      string
	logger     *log.Logger
}

func NewService(apiURL, graphqlURL, streakURL, token string) *Service {
	return &Service{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// GitHub allows 5000 req/h authenticated; stay well below it
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		apiURL:     apiURL,
		graphqlURL: graphqlURL,
		streakURL:  streakURL,
		token:      token,
		logger:     log.New(os.Stdout, "github: ", log.LstdFlags|log.Lmsgprefix),
	}
}

func (s *Service) get(ctx context.Context, rawURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github API error (%d): %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserByProviderID resolves a GitHub account by its numeric provider
// identifier, the value the identity provider stores for a linked account.
func (s *Service) GetUserByProviderID(ctx context.Context, providerID int64) (*models.GitHubUser, error) {
	var user models.GitHubUser
	if err := s.get(ctx, s.apiURL+"/user/"+strconv.FormatInt(providerID, 10), &user); err != nil {
		return nil, fmt.Errorf("failed to resolve github user %d: %w", providerID, err)
	}
	return &user, nil
}

// GetAuthenticatedUser fetches the user owning an OAuth access token.
func (s *Service) GetAuthenticatedUser(ctx context.Context, accessToken string) (*models.GitHubUser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github API error (%d): %s", resp.StatusCode, body)
	}

	var user models.GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListRepos lists a user's public repositories sorted by update time.
func (s *Service) ListRepos(ctx context.Context, login string, page int) ([]models.Repo, error) {
	if page < 1 {
		page = 1
	}

	u := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=%d&page=%d",
		s.apiURL, url.PathEscape(login), defaultPerPage, page)

	var repos []models.Repo
	if err := s.get(ctx, u, &repos); err != nil {
		return nil, fmt.Errorf("failed to list repos for %s: %w", login, err)
	}
	return repos, nil
}

// GetLanguages fetches a repository's language byte breakdown, sorted
// descending. Enrichment callers swallow failures; an error here must not
// break a repo listing.
func (s *Service) GetLanguages(ctx context.Context, owner, repo string) ([]models.RepoLanguage, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/languages", s.apiURL, url.PathEscape(owner), url.PathEscape(repo))

	raw := map[string]int64{}
	if err := s.get(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch languages for %s/%s: %w", owner, repo, err)
	}

	langs := make([]models.RepoLanguage, 0, len(raw))
	for name, bytes := range raw {
		langs = append(langs, models.RepoLanguage{Name: name, Bytes: bytes})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Bytes > langs[j].Bytes })

	return langs, nil
}

// GetEvents fetches a user's public activity feed. GitHub caps the feed and
// offers no durable cursor, so callers diff against their own marker.
func (s *Service) GetEvents(ctx context.Context, login string) ([]models.Event, error) {
	var events []models.Event
	if err := s.get(ctx, s.apiURL+"/users/"+url.PathEscape(login)+"/events", &events); err != nil {
		return nil, fmt.Errorf("failed to fetch events for %s: %w", login, err)
	}
	return events, nil
}
