package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage"
	"freelancehub/internal/storage/memory"
	"freelancehub/pkg/circuitbreaker"
	"freelancehub/pkg/trace"
)

func TestParseMilestones(t *testing.T) {
	many := make([]string, 10)
	for i := range many {
		many[i] = fmt.Sprintf(`{"title":"M%d"}`, i)
	}

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		wantLen   int
		wantFirst roadmap.MilestoneInput
	}{
		{
			name:      "plain array",
			content:   `[{"title":"Design","description":"Mockups","estimatedDuration":"2 weeks"}]`,
			wantLen:   1,
			wantFirst: roadmap.MilestoneInput{Title: "Design", Description: "Mockups", EstimatedDuration: "2 weeks"},
		},
		{
			name:      "fenced",
			content:   "```json\n[{\"title\":\"Build\",\"description\":\"\",\"estimatedDuration\":null}]\n```",
			wantLen:   1,
			wantFirst: roadmap.MilestoneInput{Title: "Build"},
		},
		{
			name:      "empty title",
			content:   `[{"title":"  ","description":"x"}]`,
			wantLen:   1,
			wantFirst: roadmap.MilestoneInput{Title: UntitledMilestone, Description: "x"},
		},
		{
			name:      "capped",
			content:   "[" + strings.Join(many, ",") + "]",
			wantLen:   MaxMilestones,
			wantFirst: roadmap.MilestoneInput{Title: "M0"},
		},
		{name: "object not array", content: `{"title":"x"}`, wantErr: true},
		{name: "prose", content: "Here is your roadmap!", wantErr: true},
		{name: "empty", content: "``` ```", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMilestones(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMilestones: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if got[0] != tt.wantFirst {
				t.Fatalf("first = %+v, want %+v", got[0], tt.wantFirst)
			}
		})
	}
}

func TestAgentClient(t *testing.T) {
	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-roadmap" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotTrace = r.Header.Get(trace.HeaderName)
		var req agentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(agentResponse{Content: "echo:" + req.Text})
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL+"/", time.Second, zap.NewNop())
	ctx := trace.WithContext(context.Background(), "trace-123")
	out, err := c.Complete(ctx, "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "echo:hello" {
		t.Fatalf("out = %q", out)
	}
	if gotTrace != "trace-123" {
		t.Fatalf("trace header = %q", gotTrace)
	}
}

func TestAgentClientBreakerOpensOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, time.Second, zap.NewNop())
	threshold := int(circuitbreaker.DefaultConfig().FailureThreshold)
	for i := 0; i < threshold; i++ {
		if _, err := c.Complete(context.Background(), "hello"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	_, err := c.Complete(context.Background(), "hello")
	if !circuitbreaker.IsOpen(err) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if got := atomic.LoadInt32(&calls); int(got) != threshold {
		t.Fatalf("server calls = %d, want %d", got, threshold)
	}
}

func TestAgentClient4xxDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, time.Second, zap.NewNop())
	for i := 0; i < 10; i++ {
		_, err := c.Complete(context.Background(), "hello")
		var se *statusError
		if !errors.As(err, &se) || se.code != http.StatusBadRequest {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
}

type fakeCompleter struct {
	content string
	err     error
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.content, f.err
}

func newGenerator(t *testing.T, c Completer) (*Generator, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	p := &model.Project{ID: "p-1", Title: "Shop", FreelancerID: "f-1", Status: model.ProjectDraft}
	err := store.RunInTx(context.Background(), func(tx storage.Tx) error {
		return tx.InsertProject(context.Background(), p)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	engine := roadmap.NewEngine(store, zap.NewNop())
	return New(c, store, engine, zap.NewNop()), store, p.ID
}

func TestGenerate(t *testing.T) {
	owner := model.Actor{UserID: "f-1", Role: model.RoleFreelancer}
	ctx := context.Background()

	t.Run("preview", func(t *testing.T) {
		fc := &fakeCompleter{content: `[{"title":"A"},{"title":"B"}]`}
		g, store, pid := newGenerator(t, fc)
		res, err := g.Generate(ctx, owner, pid, "Build an online shop with payments", false)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(res.Milestones) != 2 || res.Applied != nil {
			t.Fatalf("result = %+v", res)
		}
		if ms, _ := store.ListMilestones(ctx, pid); len(ms) != 0 {
			t.Fatalf("preview wrote milestones: %v", ms)
		}
	})

	t.Run("apply", func(t *testing.T) {
		fc := &fakeCompleter{content: `[{"title":"A"},{"title":"B"}]`}
		g, store, pid := newGenerator(t, fc)
		res, err := g.Generate(ctx, owner, pid, "Build an online shop with payments", true)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		ms, _ := store.ListMilestones(ctx, pid)
		if len(res.Applied) != 2 || len(ms) != 2 || ms[1].Title != "B" || ms[1].Order != 1 {
			t.Fatalf("applied = %+v, stored = %+v", res.Applied, ms)
		}
	})

	t.Run("short text", func(t *testing.T) {
		fc := &fakeCompleter{}
		g, _, pid := newGenerator(t, fc)
		if _, err := g.Generate(ctx, owner, pid, "  too short ", false); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("err = %v", err)
		}
		if fc.calls != 0 {
			t.Fatalf("agent called for invalid input")
		}
	})

	t.Run("not owner", func(t *testing.T) {
		g, _, pid := newGenerator(t, &fakeCompleter{})
		other := model.Actor{UserID: "f-2", Role: model.RoleFreelancer}
		if _, err := g.Generate(ctx, other, pid, "Build an online shop with payments", false); !errors.Is(err, apperr.ErrAccessDenied) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("agent failure is opaque", func(t *testing.T) {
		g, _, pid := newGenerator(t, &fakeCompleter{err: errors.New("dial tcp: connection refused")})
		_, err := g.Generate(ctx, owner, pid, "Build an online shop with payments", false)
		if !errors.Is(err, apperr.ErrOperationFailed) || strings.Contains(err.Error(), "dial") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unparseable output", func(t *testing.T) {
		g, _, pid := newGenerator(t, &fakeCompleter{content: "Sure! Here are some milestones."})
		if _, err := g.Generate(ctx, owner, pid, "Build an online shop with payments", false); !errors.Is(err, apperr.ErrOperationFailed) {
			t.Fatalf("err = %v", err)
		}
	})
}
