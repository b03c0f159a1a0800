package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/generator"
	"freelancehub/internal/handler"
	"freelancehub/internal/identity"
	"freelancehub/internal/project"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage/memory"
	"freelancehub/pkg/trace"
)

type stubCompleter struct{ content string }

func (s stubCompleter) Complete(ctx context.Context, text string) (string, error) {
	return s.content, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	store := memory.New()
	ids := identity.NewService(store, identity.NewTokenIssuer("secret", time.Hour), identity.NewMemoryRevocations(), log)
	projects := project.NewService(store, "http://localhost:3000", log)
	engine := roadmap.NewEngine(store, log)
	gen := generator.New(stubCompleter{content: "```json\n[{\"title\":\"Discovery\"},{\"title\":\"Build\"}]\n```"}, store, engine, log)

	return NewRouter(Deps{
		Auth:       handler.NewAuthHandler(ids, projects, log),
		Projects:   handler.NewProjectHandler(projects, log),
		Milestones: handler.NewMilestoneHandler(engine, gen, log),
		Resolver:   ids,
		Ready:      store,
		Logger:     log,
	}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body %s", w.Code, want, w.Body.String())
	}
}

func registerAndLogin(t *testing.T, h http.Handler, email, role string) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/auth/register", "", gin.H{"email": email, "password": "password123", "name": "Test User", "role": role})
	expectStatus(t, w, http.StatusCreated)

	w = do(t, h, http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": "password123"})
	expectStatus(t, w, http.StatusOK)
	var resp struct {
		Session identity.Session `json:"session"`
	}
	decode(t, w, &resp)
	return resp.Session.Token
}

type milestonesResp struct {
	Milestones []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Order  int    `json:"order"`
		Status string `json:"status"`
	} `json:"milestones"`
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t)
	expectStatus(t, do(t, h, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodGet, "/readyz", "", nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodGet, "/metrics", "", nil), http.StatusOK)
}

func TestTraceHeaderEchoed(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(trace.HeaderName); got != "abc-123" {
		t.Fatalf("trace header = %q", got)
	}

	w = do(t, h, http.MethodGet, "/healthz", "", nil)
	if w.Header().Get(trace.HeaderName) == "" {
		t.Fatal("no trace id generated")
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestRouter(t)
	expectStatus(t, do(t, h, http.MethodGet, "/projects", "", nil), http.StatusUnauthorized)
	expectStatus(t, do(t, h, http.MethodGet, "/projects", "garbage", nil), http.StatusUnauthorized)

	w := do(t, h, http.MethodPost, "/auth/login", "", gin.H{"email": "nobody@example.com", "password": "password123"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newTestRouter(t)
	token := registerAndLogin(t, h, "f@example.com", "FREELANCER")

	expectStatus(t, do(t, h, http.MethodGet, "/auth/me", token, nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPost, "/auth/logout", token, nil), http.StatusNoContent)
	expectStatus(t, do(t, h, http.MethodGet, "/auth/me", token, nil), http.StatusUnauthorized)
}

func TestRoadmapOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	token := registerAndLogin(t, h, "f@example.com", "FREELANCER")
	other := registerAndLogin(t, h, "g@example.com", "FREELANCER")

	w := do(t, h, http.MethodPost, "/projects", token, gin.H{"title": "Website"})
	expectStatus(t, w, http.StatusCreated)
	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	decode(t, w, &created)
	pid := created.Project.ID

	w = do(t, h, http.MethodPut, "/projects/"+pid+"/milestones", token, gin.H{"milestones": []gin.H{
		{"title": "Design"}, {"title": "Build"}, {"title": "Launch"},
	}})
	expectStatus(t, w, http.StatusOK)
	var ms milestonesResp
	decode(t, w, &ms)
	if len(ms.Milestones) != 3 {
		t.Fatalf("milestones = %+v", ms)
	}
	a, b, c := ms.Milestones[0].ID, ms.Milestones[1].ID, ms.Milestones[2].ID

	// replacing someone else's roadmap reads as not found
	expectStatus(t, do(t, h, http.MethodPut, "/projects/"+pid+"/milestones", other, gin.H{"milestones": []gin.H{}}), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodPut, "/projects/"+pid+"/milestones/order", other, gin.H{"milestone_ids": []string{c, a, b}}), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodPut, "/projects/"+pid+"/milestones/order", token, gin.H{"milestone_ids": []string{c, a}}), http.StatusBadRequest)

	w = do(t, h, http.MethodPut, "/projects/"+pid+"/milestones/order", token, gin.H{"milestone_ids": []string{c, a, b}})
	expectStatus(t, w, http.StatusOK)

	expectStatus(t, do(t, h, http.MethodDelete, "/milestones/"+a, token, nil), http.StatusNoContent)
	w = do(t, h, http.MethodGet, "/projects/"+pid+"/milestones", token, nil)
	expectStatus(t, w, http.StatusOK)
	ms = milestonesResp{}
	decode(t, w, &ms)
	if len(ms.Milestones) != 2 || ms.Milestones[0].ID != c || ms.Milestones[1].ID != b || ms.Milestones[1].Order != 1 {
		t.Fatalf("after delete = %+v", ms)
	}

	w = do(t, h, http.MethodPost, "/projects/"+pid+"/milestones", token, gin.H{"after_order": -1})
	expectStatus(t, w, http.StatusCreated)
	expectStatus(t, do(t, h, http.MethodPost, "/projects/"+pid+"/milestones", token, gin.H{"after_order": -2}), http.StatusBadRequest)

	expectStatus(t, do(t, h, http.MethodPatch, "/milestones/"+b, token, gin.H{"title": "Build v2"}), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPost, "/milestones/"+b+"/complete", token, nil), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPost, "/milestones/"+c+"/start", token, nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPut, "/milestones/"+c+"/status", token, gin.H{"status": "AWAITING_APPROVAL"}), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodPut, "/milestones/"+c+"/status", token, gin.H{"status": "DONE"}), http.StatusBadRequest)
	expectStatus(t, do(t, h, http.MethodPost, "/milestones/missing/start", token, nil), http.StatusNotFound)

	w = do(t, h, http.MethodGet, "/projects/"+pid+"/roadmap/stats", token, nil)
	expectStatus(t, w, http.StatusOK)
	var stats roadmap.Stats
	decode(t, w, &stats)
	if stats.Total != 3 || stats.AwaitingApproval != 1 || stats.Pending != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	w = do(t, h, http.MethodPost, "/projects/"+pid+"/roadmap/validate", token, nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"ACTIVE"`) {
		t.Fatalf("validate body = %s", w.Body.String())
	}
}

func TestGenerateOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	token := registerAndLogin(t, h, "f@example.com", "FREELANCER")
	w := do(t, h, http.MethodPost, "/projects", token, gin.H{"title": "Shop"})
	expectStatus(t, w, http.StatusCreated)
	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	decode(t, w, &created)
	pid := created.Project.ID

	expectStatus(t, do(t, h, http.MethodPost, "/projects/"+pid+"/roadmap/generate", token, gin.H{"text": "short"}), http.StatusBadRequest)

	w = do(t, h, http.MethodPost, "/projects/"+pid+"/roadmap/generate", token, gin.H{"text": "An online shop with a blog", "apply": true})
	expectStatus(t, w, http.StatusOK)
	var res generator.Result
	decode(t, w, &res)
	if len(res.Milestones) != 2 || len(res.Applied) != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestClientPortalFlow(t *testing.T) {
	h := newTestRouter(t)
	freelancer := registerAndLogin(t, h, "f@example.com", "FREELANCER")

	w := do(t, h, http.MethodPost, "/projects", freelancer, gin.H{"title": "Logo"})
	expectStatus(t, w, http.StatusCreated)
	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	decode(t, w, &created)
	pid := created.Project.ID
	expectStatus(t, do(t, h, http.MethodPut, "/projects/"+pid+"/milestones", freelancer, gin.H{"milestones": []gin.H{{"title": "Sketches"}}}), http.StatusOK)

	w = do(t, h, http.MethodPost, "/projects/"+pid+"/invitations", freelancer, gin.H{"email": "client@example.com"})
	expectStatus(t, w, http.StatusCreated)
	var inv struct {
		Invitation struct {
			Token string `json:"token"`
			Link  string `json:"link"`
		} `json:"invitation"`
	}
	decode(t, w, &inv)
	if inv.Invitation.Link != "http://localhost:3000/invite/"+inv.Invitation.Token {
		t.Fatalf("link = %q", inv.Invitation.Link)
	}

	expectStatus(t, do(t, h, http.MethodGet, "/invitations/"+inv.Invitation.Token, "", nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodGet, "/invitations/unknown", "", nil), http.StatusNotFound)

	w = do(t, h, http.MethodPost, "/auth/register/client", "", gin.H{
		"email": "client@example.com", "password": "password123", "name": "Client", "invite_token": inv.Invitation.Token,
	})
	expectStatus(t, w, http.StatusCreated)
	var reg struct {
		Session identity.Session `json:"session"`
	}
	decode(t, w, &reg)
	client := reg.Session.Token

	w = do(t, h, http.MethodGet, "/portal/projects", client, nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), pid) {
		t.Fatalf("portal = %s", w.Body.String())
	}
	expectStatus(t, do(t, h, http.MethodGet, "/portal/projects/"+pid, client, nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodGet, "/projects/"+pid+"/roadmap/next", client, nil), http.StatusOK)

	// clients read, never write
	expectStatus(t, do(t, h, http.MethodPut, "/projects/"+pid+"/milestones", client, gin.H{"milestones": []gin.H{}}), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodPost, "/projects", client, gin.H{"title": "Mine"}), http.StatusForbidden)
	expectStatus(t, do(t, h, http.MethodGet, "/portal/projects", freelancer, nil), http.StatusForbidden)
}
