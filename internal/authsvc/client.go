// Package authsvc is the HTTP client for the Auth service, which issues
// and validates the bearer tokens the gateway forwards to the Collector.
package authsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/chatlens/insight-gateway/internal/errors"
	"github.com/chatlens/insight-gateway/internal/model"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login exchanges credentials for a bearer token. The Auth service
// reports business failures (wrong password) with success=false inside
// a 2xx-or-4xx body, so the caller gets both the payload and the
// upstream status.
func (c *Client) Login(ctx context.Context, username, password string) (*model.AuthResponse, int, error) {
	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, apperrors.Internal("Ошибка сервера").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("auth login request failed")
		return nil, 0, apperrors.Upstream("Ошибка сервера", 0, err)
	}
	defer resp.Body.Close()

	var authResp model.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, resp.StatusCode, apperrors.Upstream("Ошибка сервера", resp.StatusCode, err)
	}
	return &authResp, resp.StatusCode, nil
}

// Me resolves the token to a user profile. A 401 means the token is
// invalid and the gateway should drop its cookie.
func (c *Client) Me(ctx context.Context, token string) (*model.User, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, 0, apperrors.Internal("Ошибка сервера").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("auth me request failed")
		return nil, 0, apperrors.Upstream("Ошибка сервера", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, apperrors.Upstream("Не авторизован", resp.StatusCode,
			fmt.Errorf("auth service returned %d", resp.StatusCode))
	}

	var user model.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, resp.StatusCode, apperrors.Upstream("Ошибка сервера", resp.StatusCode, err)
	}
	return &user, resp.StatusCode, nil
}

type changePasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) (string, int, error) {
	payload, _ := json.Marshal(map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/change-password", bytes.NewReader(payload))
	if err != nil {
		return "", 0, apperrors.Internal("Ошибка сервера").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("auth change-password request failed")
		return "", 0, apperrors.Upstream("Произошла ошибка при обработке запроса", 0, err)
	}
	defer resp.Body.Close()

	var body changePasswordResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", resp.StatusCode, apperrors.Upstream("Произошла ошибка при обработке запроса", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := body.Message
		if msg == "" {
			msg = "Ошибка при смене пароля"
		}
		return "", resp.StatusCode, apperrors.Upstream(msg, resp.StatusCode, nil)
	}
	return "Пароль успешно изменен", resp.StatusCode, nil
}
