package backend

import (
	"context"
	"net/http"

	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
)

// Login exchanges credentials for an access token.
//
// A successful response without an access token is reported as [ErrUnauthorized].
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
		Message     string `json:"message"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.SendJSON(ctx, Auth{}, http.MethodPost, "/users/login", in, &out); err != nil {
		if errors.Is(err, ErrEmptyBody) {
			return "", NewError(http.StatusUnauthorized, "")
		}
		return "", err
	}
	if out.AccessToken == "" {
		return "", NewError(http.StatusUnauthorized, out.Message)
	}
	return out.AccessToken, nil
}

// Profile returns the profile of the user the token was issued to.
func (c *Client) Profile(ctx context.Context, token string) (models.Profile, error) {
	var profile models.Profile
	if err := c.GetJSON(ctx, Auth{Token: token}, "/users/profile", nil, &profile); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// Register creates a new user. Any 2xx response counts as success regardless of the body.
func (c *Client) Register(ctx context.Context, in models.RegisterInput) error {
	payload := struct {
		Username       string `json:"username"`
		Password       string `json:"password"`
		FullName       string `json:"fullName"`
		Email          string `json:"email"`
		Role           string `json:"role"`
		OrganizationID string `json:"organizationId"`
	}{
		Username:       in.Username,
		Password:       in.Password,
		FullName:       in.FullName,
		Email:          in.Email,
		Role:           string(in.Role),
		OrganizationID: in.Organization,
	}
	return c.SendJSON(ctx, Auth{}, http.MethodPost, "/users/register", payload, nil)
}
