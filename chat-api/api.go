package chatapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"aichat/log"

	openai "github.com/sashabaranov/go-openai"
)

const waitForRateLimitRetry = time.Minute
const PromtPrefix = "You are a helpful assistant."
const SystemRole = "system"
const UserRole = "user"

var (
	ErrNoChoice       = errors.New("no answer choice")
	ErrNoClient       = errors.New("no openai client available")
	ErrRateLimited    = errors.New("openai rate limit reached")
	DefaultModel      = openai.GPT3Dot5Turbo
	defaultPoolConfig = Config{Model: DefaultModel, SystemPrompt: PromtPrefix}
)

type Config struct {
	Keys         []string `yaml:"openai_key"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// Client answers single questions with one API key.
type Client struct {
	gptClient    *openai.Client
	model        string
	systemPrompt string

	mu         sync.Mutex
	availAfter time.Time
}

func NewClient(apiKey string, cfg Config) *Client {
	conf := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{
		gptClient:    openai.NewClientWithConfig(conf),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
	}
}

func (c *Client) Available(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !now.Before(c.availAfter)
}

func (c *Client) coolDown(now time.Time) {
	c.mu.Lock()
	c.availAfter = now.Add(waitForRateLimitRetry)
	c.mu.Unlock()
}

func (c *Client) buildPromt(message string) []openai.ChatCompletionMessage {
	promt := make([]openai.ChatCompletionMessage, 0, 2)
	if c.systemPrompt != "" {
		promt = append(promt, openai.ChatCompletionMessage{Role: SystemRole, Content: c.systemPrompt})
	}
	return append(promt, openai.ChatCompletionMessage{Role: UserRole, Content: message})
}

// GetAnswer sends message as a single user turn. One attempt, no retry.
func (c *Client) GetAnswer(ctx context.Context, message string) (string, error) {
	resp, err := c.gptClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.buildPromt(message),
	})
	if err != nil {
		log.Info("openai completion error: ", err.Error())
		if strings.Contains(err.Error(), "429") {
			c.coolDown(time.Now())
			return "", ErrRateLimited
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoice
	}
	return resp.Choices[0].Message.Content, nil
}

// Pool rotates over one client per configured key, skipping clients that
// are cooling down after a rate limit.
type Pool struct {
	mu      sync.Mutex
	clients []*Client
	next    int
}

func NewPool(cfg Config) *Pool {
	if cfg.Model == "" {
		cfg.Model = defaultPoolConfig.Model
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultPoolConfig.SystemPrompt
	}
	p := &Pool{}
	for _, key := range cfg.Keys {
		if key == "" {
			continue
		}
		p.clients = append(p.clients, NewClient(key, cfg))
	}
	return p
}

func (p *Pool) Len() int {
	return len(p.clients)
}

func (p *Pool) pick(now time.Time) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < len(p.clients); i++ {
		c := p.clients[(p.next+i)%len(p.clients)]
		if c.Available(now) {
			p.next = (p.next + i + 1) % len(p.clients)
			return c
		}
	}
	return nil
}

// Complete implements chat.Completer.
func (p *Pool) Complete(ctx context.Context, message string) (string, error) {
	c := p.pick(time.Now())
	if c == nil {
		return "", ErrNoClient
	}
	return c.GetAnswer(ctx, message)
}
