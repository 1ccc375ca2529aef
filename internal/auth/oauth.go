package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Profile is the subset of a social provider's user info used to link or
// create an account.
type Profile struct {
	ID       string
	Email    string
	Name     string
	Username string
	Image    string
}

// Provider is a configured social login provider.
type Provider struct {
	Name       string
	Config     *oauth2.Config
	ProfileURL string
	// EmailsURL lists the user's addresses. It is read when the profile
	// carries no email, as GitHub does for private addresses.
	EmailsURL string
	parse     func([]byte) (Profile, error)
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
		parse: func(b []byte) (Profile, error) {
			var p struct {
				Sub     string `json:"sub"`
				Email   string `json:"email"`
				Name    string `json:"name"`
				Picture string `json:"picture"`
			}
			if err := json.Unmarshal(b, &p); err != nil {
				return Profile{}, err
			}
			return Profile{ID: p.Sub, Email: p.Email, Name: p.Name, Image: p.Picture}, nil
		},
	}
}

func NewGitHubProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "github",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		ProfileURL: "https://api.github.com/user",
		EmailsURL:  "https://api.github.com/user/emails",
		parse: func(b []byte) (Profile, error) {
			var p struct {
				ID        int64  `json:"id"`
				Login     string `json:"login"`
				Email     string `json:"email"`
				Name      string `json:"name"`
				AvatarURL string `json:"avatar_url"`
			}
			if err := json.Unmarshal(b, &p); err != nil {
				return Profile{}, err
			}
			name := p.Name
			if name == "" {
				name = p.Login
			}
			return Profile{ID: strconv.FormatInt(p.ID, 10), Email: p.Email, Name: name, Username: p.Login, Image: p.AvatarURL}, nil
		},
	}
}

// AuthCodeURL returns the consent page url for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token and fetches the user's profile.
func (p *Provider) Exchange(ctx context.Context, code string) (Profile, *oauth2.Token, error) {
	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("exchanging %s code: %w", p.Name, err)
	}
	client := p.Config.Client(ctx, tok)

	var body json.RawMessage
	if err := p.getJSON(ctx, client, p.ProfileURL, &body); err != nil {
		return Profile{}, nil, fmt.Errorf("fetching %s profile: %w", p.Name, err)
	}
	profile, err := p.parse(body)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("decoding %s profile: %w", p.Name, err)
	}
	if profile.Email == "" && p.EmailsURL != "" {
		profile.Email, err = p.primaryEmail(ctx, client)
		if err != nil {
			return Profile{}, nil, err
		}
	}
	if profile.ID == "" || profile.Email == "" {
		return Profile{}, nil, fmt.Errorf("%s profile is missing an id or email", p.Name)
	}
	return profile, tok, nil
}

// primaryEmail picks the primary verified address, or else the first
// verified one.
func (p *Provider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, client, p.EmailsURL, &emails); err != nil {
		return "", fmt.Errorf("fetching %s emails: %w", p.Name, err)
	}
	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback, nil
}

func (p *Provider) getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
