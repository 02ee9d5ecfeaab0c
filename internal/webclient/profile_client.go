package webclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"
)

// Profile is the current user's profile.
type Profile struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	Nickname    string    `json:"nickname"`
	Username    *string   `json:"username"`
	AvatarURL   *string   `json:"avatarUrl"`
	Preferences *string   `json:"preferences"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UpdateProfileRequest holds the fields to change. Nil fields are left as they are.
type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty"`
	Nickname    *string `json:"nickname,omitempty"`
	Preferences *string `json:"preferences,omitempty"`
}

// UsernameAvailability is the result of a username check.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type avatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}

// ProfileClient calls the profile endpoints.
type ProfileClient struct {
	client *Client
}

// NewProfileClient creates a ProfileClient.
func NewProfileClient(client *Client) *ProfileClient {
	return &ProfileClient{client: client}
}

// GetProfile fetches the current user's profile.
func (p *ProfileClient) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := p.client.Get(ctx, "/api/users/profile", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies req and returns the updated profile.
func (p *ProfileClient) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*Profile, error) {
	var profile Profile
	if err := p.client.Put(ctx, "/api/users/profile", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UploadAvatar sends content as the "avatar" multipart field and returns the new avatar URL.
func (p *ProfileClient) UploadAvatar(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("avatar", filepath.Base(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var resp avatarResponse
	if err := p.client.do(ctx, http.MethodPost, "/api/users/avatar", &buf, w.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	return resp.AvatarURL, nil
}

// UsernameAvailable reports whether username is free for the current user.
func (p *ProfileClient) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var resp UsernameAvailability
	path := "/api/users/username-available?username=" + url.QueryEscape(username)
	if err := p.client.Get(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}
