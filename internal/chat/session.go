package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/esbmc/esbmc-ai/internal/llm"
)

// ErrContextOverflow is returned when a request cannot fit the model's
// context window even after dropping all droppable history.
var ErrContextOverflow = errors.New("message stack exceeds model context window")

// Session wraps a message stack destination with a pluggable model backend.
// It enforces a cooldown between consecutive sends, compresses history that
// would overflow the model's context window, and retries transient failures.
// A Session is single-threaded; instantiate one per repair run.
type Session struct {
	provider    Backend
	route       llm.ModelRoute
	limiter     *rate.Limiter
	maxAttempts int
	logger      *zap.Logger
}

// Backend is the capability a session needs from a model implementation.
type Backend interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	CountTokens(model string, messages []llm.ChatMessage) int
}

// NewSession builds a session. cooldown <= 0 disables rate limiting;
// maxRetries bounds retries of transient model errors on top of the first try.
func NewSession(provider Backend, route llm.ModelRoute, cooldown time.Duration, maxRetries int, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cooldown > 0 {
		limiter = rate.NewLimiter(rate.Every(cooldown), 1)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Session{
		provider:    provider,
		route:       route,
		limiter:     limiter,
		maxAttempts: maxRetries + 1,
		logger:      logger,
	}
}

// Send transmits the stack plus one new user turn and returns the reply text.
// On success the user turn and the reply are appended to the stack (after any
// history compression is committed); on failure the stack is left unmodified.
func (s *Session) Send(ctx context.Context, stack *MessageStack, userContent string) (string, error) {
	msgs := append(stack.Render(), llm.ChatMessage{Role: llm.RoleUser, Content: userContent})

	msgs, dropped, err := s.fit(msgs, stack.SystemLen())
	if err != nil {
		return "", err
	}

	var resp llm.ChatResponse
	for attempt := 1; ; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err = s.provider.Chat(ctx, llm.ChatRequest{
			Model:       s.route.Model,
			Messages:    msgs,
			MaxTokens:   s.route.MaxTokens,
			Temperature: s.route.Temperature,
		})
		if err == nil {
			break
		}
		if !llm.IsTransient(err) || attempt >= s.maxAttempts {
			return "", err
		}
		s.logger.Warn("model call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(err))
	}

	stack.DropOldestTurns(dropped)
	stack.Push(llm.RoleUser, userContent)
	stack.Push(llm.RoleAssistant, resp.Message.Content)

	return resp.Message.Content, nil
}

// fit drops the oldest non-system turns until the token estimate is inside
// the context window. The freshly added user turn is never dropped: when only
// the system prefix and that turn remain and the estimate still exceeds the
// window, the request cannot be transmitted at all.
func (s *Session) fit(msgs []llm.ChatMessage, systemLen int) ([]llm.ChatMessage, int, error) {
	window := s.route.ContextWindow
	if window <= 0 {
		return msgs, 0, nil
	}

	dropped := 0
	for s.provider.CountTokens(s.route.Model, msgs) > window {
		if len(msgs) <= systemLen+1 {
			return nil, 0, ErrContextOverflow
		}
		trimmed := make([]llm.ChatMessage, 0, len(msgs)-1)
		trimmed = append(trimmed, msgs[:systemLen]...)
		trimmed = append(trimmed, msgs[systemLen+1:]...)
		msgs = trimmed
		dropped++
		s.logger.Debug("dropped oldest turn to fit context window",
			zap.Int("dropped", dropped),
			zap.Int("window", window))
	}
	return msgs, dropped, nil
}
