package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"freelancehub/pkg/circuitbreaker"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/trace"
)

const generatePath = "/generate-roadmap"

// systemPrompt tells the agent what to extract and in which shape.
const systemPrompt = `You are an assistant for freelance project management.
From the provided text (brief, quote, meeting notes) extract the main DELIVERABLE MILESTONES of the project.
Each milestone is a major stage of the project, not a granular technical task.
Return at most 8 milestones with short descriptions (1-2 sentences) and a realistic duration estimate.
Return ONLY a JSON array of {"title": "...", "description": "...", "estimatedDuration": "..."} objects and nothing else.`

// Completer turns free text into the raw model output.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// AgentClient calls the agent service behind a circuit breaker.
type AgentClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

type agentRequest struct {
	System string `json:"system"`
	Text   string `json:"text"`
}

type agentResponse struct {
	Content string `json:"content"`
}

func NewAgentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *AgentClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AgentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb:         circuitbreaker.New("agent-service", circuitbreaker.DefaultConfig(), logger),
		logger:     logger,
	}
}

// Complete posts text to the agent and returns its content field. 4xx
// answers do not count against the breaker.
func (c *AgentClient) Complete(ctx context.Context, text string) (string, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		content, err := c.call(ctx, text)
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			// surfaced below without tripping the breaker
			return se, nil
		}
		return content, err
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			metrics.RecordAgentCallLatency(generatePath, "circuit_open", 0)
		}
		return "", err
	}
	if se, ok := out.(*statusError); ok {
		return "", se
	}
	return out.(string), nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("agent service error: %d", e.code)
}

func (c *AgentClient) call(ctx context.Context, text string) (string, error) {
	start := time.Now()
	b, err := json.Marshal(agentRequest{System: systemPrompt, Text: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		metrics.RecordAgentCallLatency(generatePath, "error", latency)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := fmt.Sprintf("%d", resp.StatusCode)
		if resp.StatusCode >= 500 {
			status = "5xx"
		}
		metrics.RecordAgentCallLatency(generatePath, status, latency)
		return "", &statusError{code: resp.StatusCode}
	}
	metrics.RecordAgentCallLatency(generatePath, "success", latency)

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode agent response: %w", err)
	}
	return out.Content, nil
}
