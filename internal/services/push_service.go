package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushMessage is what a device receives.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]any
}

// PushService delivers messages to device tokens through an Expo-compatible
// push endpoint. With no endpoint configured every send is a no-op.
type PushService struct {
	endpoint    string
	accessToken string
	client      *http.Client
}

// NewPushService constructs a PushService.
func NewPushService(endpoint, accessToken string) *PushService {
	return &PushService{
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type pushPayload struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound"`
}

// Send posts one message per token in a single batch request.
func (s *PushService) Send(ctx context.Context, tokens []string, msg PushMessage) error {
	if s.endpoint == "" || len(tokens) == 0 {
		return nil
	}

	batch := make([]pushPayload, 0, len(tokens))
	for _, token := range tokens {
		batch = append(batch, pushPayload{
			To:    token,
			Title: msg.Title,
			Body:  msg.Body,
			Data:  msg.Data,
			Sound: "default",
		})
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
