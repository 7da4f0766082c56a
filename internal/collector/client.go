// Package collector is the HTTP client for the Collector service, which
// owns the Telegram login handshake, contacts, subscriptions and chat
// metrics. The gateway forwards the caller's bearer token on every call
// and never holds Collector credentials of its own.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

type loginRequest struct {
	Phone     string `json:"phone"`
	SessionID string `json:"sessionId,omitempty"`
}

type codeRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type twoFactorRequest struct {
	SessionID string `json:"sessionId"`
	Password  string `json:"password"`
}

// Login starts (or resumes, when sessionID is non-empty) a phone login.
func (c *Client) Login(ctx context.Context, token, phone, sessionID string) (*model.SessionResponse, error) {
	var resp model.SessionResponse
	err := c.do(ctx, token, http.MethodPost, "/auth/telegram/login",
		loginRequest{Phone: phone, SessionID: sessionID}, &resp,
		"Ошибка при отправке номера телефона")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitVerificationCode(ctx context.Context, token, sessionID, code string) (*model.SessionResponse, error) {
	var resp model.SessionResponse
	err := c.do(ctx, token, http.MethodPost, "/auth/telegram/verification-code",
		codeRequest{SessionID: sessionID, Code: code}, &resp,
		"Ошибка при проверке кода")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitTwoFactor(ctx context.Context, token, sessionID, password string) (*model.SessionResponse, error) {
	var resp model.SessionResponse
	err := c.do(ctx, token, http.MethodPost, "/auth/telegram/two-factor",
		twoFactorRequest{SessionID: sessionID, Password: password}, &resp,
		"Ошибка при проверке пароля 2FA")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status is an idempotent poll; it never mutates the Collector-side
// session.
func (c *Client) Status(ctx context.Context, token, sessionID string) (*model.SessionResponse, error) {
	var resp model.SessionResponse
	err := c.do(ctx, token, http.MethodGet,
		"/auth/telegram/status/"+url.PathEscape(sessionID), nil, &resp,
		"Ошибка при проверке статуса")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Sessions(ctx context.Context, token string) ([]model.SessionResponse, error) {
	var resp []model.SessionResponse
	err := c.do(ctx, token, http.MethodGet, "/sessions/telegram", nil, &resp,
		"Ошибка при получении списка сессий")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Subscriptions(ctx context.Context, token, sessionID string) ([]model.Subscription, error) {
	var resp []model.Subscription
	err := c.do(ctx, token, http.MethodGet,
		"/sessions/telegram/"+url.PathEscape(sessionID)+"/subscriptions", nil, &resp,
		"Ошибка при получении подписанных контактов")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Contacts(ctx context.Context, token, sessionID, search string) ([]model.RawContact, error) {
	path := "/sessions/telegram/" + url.PathEscape(sessionID) + "/contacts"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var resp []model.RawContact
	err := c.do(ctx, token, http.MethodGet, path, nil, &resp,
		"Ошибка при получении контактов")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Subscribe(ctx context.Context, token, sessionID, interlocutorID string) error {
	return c.do(ctx, token, http.MethodPost,
		"/auth/telegram/sessions/"+url.PathEscape(sessionID)+"/interlocutors/"+url.PathEscape(interlocutorID)+"/subscribe",
		nil, nil, "Ошибка при подписке на чат")
}

func (c *Client) Unsubscribe(ctx context.Context, token, sessionID, interlocutorID string) error {
	return c.do(ctx, token, http.MethodPost,
		"/auth/telegram/sessions/"+url.PathEscape(sessionID)+"/interlocutors/"+url.PathEscape(interlocutorID)+"/unsubscribe",
		nil, nil, "Ошибка при отписке от чата")
}

// ChatMetrics returns the metrics object as-is; the aggregator attaches
// contact info on top.
func (c *Client) ChatMetrics(ctx context.Context, token, sessionID, interlocutorID string) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, token, http.MethodGet,
		"/metrics/telegram/chat/"+url.PathEscape(sessionID)+"/"+url.PathEscape(interlocutorID), nil, &resp,
		"Ошибка при получении метрик чата")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Recommendation distinguishes 404 (no recommendation yet) from other
// upstream failures.
func (c *Client) Recommendation(ctx context.Context, token, sessionID, interlocutorID string) (*model.Recommendation, error) {
	var resp model.Recommendation
	err := c.do(ctx, token, http.MethodGet,
		"/metrics/telegram/recommendations/"+url.PathEscape(sessionID)+"/"+url.PathEscape(interlocutorID), nil, &resp,
		"Ошибка при получении рекомендаций")
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.UpstreamStatus == http.StatusNotFound {
			return nil, apperrors.NotFound("Рекомендации не найдены")
		}
		return nil, err
	}
	return &resp, nil
}

// do performs one Collector call. Non-2xx responses and transport
// failures both come back as UPSTREAM_ERROR carrying errMsg and, when
// available, the backend's status code.
func (c *Client) do(ctx context.Context, token, method, path string, body, out any, errMsg string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("Ошибка сервера").WithCause(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Internal("Ошибка сервера").WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("collector request failed")
		return apperrors.Upstream(errMsg, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("body", string(errorText)).
			Dur("elapsed", elapsed).
			Msg("collector error response")
		return apperrors.Upstream(errMsg, resp.StatusCode,
			fmt.Errorf("collector returned %d", resp.StatusCode))
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("collector request")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Upstream(errMsg, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
