// Package account talks to the hosted account-deletion endpoint.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vedran77/blink/internal/auth"
	"github.com/vedran77/blink/pkg/validator"
)

var (
	ErrMissingUserID = errors.New("user ID is required")
	ErrInvalidUserID = errors.New("invalid user ID format")
)

const requestTimeout = 15 * time.Second

type Client struct {
	endpoint string
	tokens   auth.TokenSource
	http     *http.Client
	log      *slog.Logger
}

func NewClient(endpoint string, tokens auth.TokenSource, log *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		tokens:   tokens,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

type deleteRequest struct {
	UserID string `json:"userId"`
}

// DeleteUserAccount asks the backend to remove userID and everything it owns.
func (c *Client) DeleteUserAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if !validator.IsUUID(userID) {
		return ErrInvalidUserID
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("getting access token: %w", err)
	}

	body, err := json.Marshal(deleteRequest{UserID: userID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("failed to delete user: %s", bytes.TrimSpace(msg))
	}

	c.log.Info("Account deleted", "user_id", userID)
	return nil
}
