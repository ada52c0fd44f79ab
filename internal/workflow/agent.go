package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

const (
	agentAppName = "cs-agent"
	agentUserID  = "nats-user"
)

// Agent calls the remote agent service: create a session, post the
// instruction as a run request, return the final text part of the last
// event. Calls may take minutes; the caller bounds them via ctx.
type Agent struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewAgent(baseURL string, log *logger.Logger) *Agent {
	return &Agent{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  log,
	}
}

type agentSession struct {
	ID string `json:"id"`
}

type agentMessagePart struct {
	Text string `json:"text"`
}

type agentMessage struct {
	Role  string             `json:"role"`
	Parts []agentMessagePart `json:"parts"`
}

type agentRunRequest struct {
	AppName    string       `json:"app_name"`
	UserID     string       `json:"user_id"`
	SessionID  string       `json:"session_id"`
	NewMessage agentMessage `json:"new_message"`
}

type agentEvent struct {
	Content struct {
		Parts []agentMessagePart `json:"parts"`
	} `json:"content"`
}

func (a *Agent) Run(ctx context.Context, instruction string) (string, error) {
	sessionID, err := a.createSession(ctx)
	if err != nil {
		return "", err
	}

	a.logger.Debug(ctx, "Agent session created",
		"session_id", sessionID,
	)

	return a.run(ctx, sessionID, instruction)
}

func (a *Agent) createSession(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/apps/%s/users/%s/sessions", a.baseURL, agentAppName, agentUserID)

	body, err := a.post(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating agent session: %w", err)
	}

	var session agentSession
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("decoding agent session: %w", err)
	}
	if session.ID == "" {
		return "", fmt.Errorf("agent session response missing id")
	}

	return session.ID, nil
}

func (a *Agent) run(ctx context.Context, sessionID, instruction string) (string, error) {
	payload, err := json.Marshal(agentRunRequest{
		AppName:   agentAppName,
		UserID:    agentUserID,
		SessionID: sessionID,
		NewMessage: agentMessage{
			Role:  "user",
			Parts: []agentMessagePart{{Text: instruction}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding agent run request: %w", err)
	}

	body, err := a.post(ctx, a.baseURL+"/run", payload)
	if err != nil {
		return "", fmt.Errorf("running agent workflow: %w", err)
	}

	var events []agentEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return "", fmt.Errorf("decoding agent events: %w", err)
	}
	if len(events) == 0 {
		return "", fmt.Errorf("agent returned no events")
	}

	last := events[len(events)-1]
	if len(last.Content.Parts) == 0 || last.Content.Parts[0].Text == "" {
		return "", fmt.Errorf("agent response has no text part")
	}

	return last.Content.Parts[0].Text, nil
}

func (a *Agent) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return body, nil
}
