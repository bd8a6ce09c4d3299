package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quantumchem/quantumchem-backend/internal/config"
	"github.com/quantumchem/quantumchem-backend/internal/observability"
)

var (
	ErrChatDisabled    = errors.New("chat is disabled")
	ErrEmptyMessage    = errors.New("message is required")
	ErrChatUnavailable = errors.New("chat backend unavailable")
)

const chatSystemPrompt = "You are the QuantumChem assistant, a friendly chemistry tutor " +
	"embedded in a chemistry-education website. Answer questions about chemistry, " +
	"the periodic table, chemical bonding, orbitals and reaction mechanisms at an " +
	"introductory level. Keep answers short and concrete. If a question is not " +
	"about chemistry or the QuantumChem platform, say you can only help with chemistry."

// cannedAnswers short-circuit the model for platform questions the site
// answers the same way every time. Keys are matched as substrings of the
// lowercased message, first hit wins in iteration order below.
var cannedAnswers = []struct {
	keyword string
	answer  string
}{
	{"quantumchem", "QuantumChem is a free chemistry-education platform with an element database, orbital visualizations and study guides. Create an account to track your progress."},
	{"contact", "You can reach the QuantumChem team through the contact form linked in the page footer, or by email at support@quantumchem.app."},
	{"database", "The compound database covers the full periodic table plus several thousand common compounds. Use the search bar on the Elements page to explore it."},
	{"sign up", "Click Register in the top-right corner, confirm your email, and sign in with the temporary password we send you."},
	{"password", "If your temporary password expired, use the Reset password link on the sign-in page and we will email you a new one."},
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatService answers visitor questions: canned platform answers first,
// then a chat-completions call against an OpenAI-compatible endpoint.
type ChatService struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger
}

func NewChatService(cfg *config.Config, logger *slog.Logger) *ChatService {
	return &ChatService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.ChatTimeout},
		logger: logger,
	}
}

func (s *ChatService) Reply(ctx context.Context, message string) (string, error) {
	if !s.cfg.ChatEnabled {
		return "", ErrChatDisabled
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	lowered := strings.ToLower(message)
	for _, c := range cannedAnswers {
		if strings.Contains(lowered, c.keyword) {
			observability.RecordChatEvent(ctx, "canned", "success")
			return c.answer, nil
		}
	}

	start := time.Now()
	reply, err := s.complete(ctx, message)
	observability.RecordChatRequestDuration(ctx, chatStatus(err), time.Since(start))
	if err != nil {
		observability.RecordChatEvent(ctx, "model", "error")
		s.logger.WarnContext(ctx, "chat completion failed", "error", err)
		return "", ErrChatUnavailable
	}
	observability.RecordChatEvent(ctx, "model", "success")
	return reply, nil
}

func (s *ChatService) complete(ctx context.Context, message string) (string, error) {
	if s.cfg.OpenAIAPIKey == "" {
		return "", fmt.Errorf("missing api key")
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model: s.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(s.cfg.OpenAIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenAIAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion status: %d", resp.StatusCode)
	}

	var body chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	reply := strings.TrimSpace(body.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("completion returned empty reply")
	}
	return reply, nil
}

func chatStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
