package relay

import (
	"context"
	"errors"
	"fmt"

	"aichat/common"
	"aichat/log"

	"github.com/goccy/go-json"
)

// MaxTimeOut bounds a single completion call, in seconds. Zero disables it.
const MaxTimeOut = 0

var ErrEmptyResponse = errors.New("completion endpoint returned no response")

type Request struct {
	Message string `json:"message"`
}

type Response struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client calls a completion endpoint over HTTP with the raw user text.
type Client struct {
	Url     string
	Timeout int
}

func NewClient(url string) *Client {
	return &Client{Url: url, Timeout: MaxTimeOut}
}

func (c *Client) Complete(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(&Request{Message: message})
	if err != nil {
		return "", err
	}
	raw, err := common.HttpPost(ctx, c.Url, string(body), c.Timeout, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		var statusErr *common.StatusError
		if errors.As(err, &statusErr) {
			var resp Response
			if json.Unmarshal(statusErr.Body, &resp) == nil && resp.Error != "" {
				return "", fmt.Errorf("completion failed: %s", resp.Error)
			}
		}
		log.Info("completion request to ", c.Url, " failed: ", err)
		return "", err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("completion failed: %s", resp.Error)
	}
	if resp.Response == "" {
		return "", ErrEmptyResponse
	}
	return resp.Response, nil
}
