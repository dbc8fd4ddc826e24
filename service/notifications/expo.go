package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExpoPushClient talks to the Expo push gateway. One message per request;
// delivery volume here never justifies batching.
type ExpoPushClient struct {
	httpClient *http.Client
	apiURL     string
}

func NewExpoPushClient(apiURL string) *ExpoPushClient {
	return &ExpoPushClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: apiURL,
	}
}

type expoPushMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
}

type expoPushResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send pushes one notification to an Expo push token.
func (c *ExpoPushClient) Send(ctx context.Context, token string, content Content) error {
	body, err := json.Marshal(expoPushMessage{
		To:        token,
		Title:     content.Title,
		Body:      content.Body,
		Data:      content.Data,
		Sound:     content.Sound,
		Priority:  content.Priority,
		ChannelID: content.ChannelID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expo push error (%d): %s", resp.StatusCode, raw)
	}

	var decoded expoPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Data.Status == "error" {
		return fmt.Errorf("expo push rejected: %s", decoded.Data.Message)
	}

	return nil
}
