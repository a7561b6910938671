package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/graemedakers/decision-jar/internal/api/handlers"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/auth"
	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIdeaTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	authService := auth.NewService(tc.DB, tc.JWTService)
	ideaService := ideas.NewService(tc.DB, billing.NewService(tc.DB))
	handler := handlers.NewIdeaHandler(ideaService, authService, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tc.JWTService))

			r.Route("/jars/{id}", func(r chi.Router) {
				r.Get("/ideas", handler.List)
				r.Post("/ideas", handler.Add)
				r.Post("/spin", handler.Spin)
			})
			r.Route("/ideas", func(r chi.Router) {
				r.Put("/{id}", handler.Update)
				r.Delete("/{id}", handler.Delete)
			})
		})
	})

	return r, tc
}

func TestIdeaHandler_AddAndList(t *testing.T) {
	router, tc := setupIdeaTestRouter(t)
	defer tc.Cleanup()

	t.Run("add an idea", func(t *testing.T) {
		body := map[string]string{
			"title":    "Picnic in the park",
			"category": "outdoors",
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/ideas", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var idea models.Idea
		testutil.ParseJSONResponse(t, rr, &idea)
		assert.Equal(t, "Picnic in the park", idea.Title)
		assert.Equal(t, models.IdeaSourceMember, idea.Source)
	})

	t.Run("missing title", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/ideas", map[string]string{}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list ideas", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/jars/"+tc.Jar.ID.String()+"/ideas", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var list []models.Idea
		testutil.ParseJSONResponse(t, rr, &list)
		assert.Len(t, list, 1)
	})

	t.Run("non-member cannot list", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB)
		strangerToken := testutil.GenerateTestToken(t, tc.JWTService, stranger)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/jars/"+tc.Jar.ID.String()+"/ideas", nil, strangerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestIdeaHandler_Spin(t *testing.T) {
	router, tc := setupIdeaTestRouter(t)
	defer tc.Cleanup()

	t.Run("spin picks an idea", func(t *testing.T) {
		testutil.CreateTestIdea(t, tc.DB, tc.Jar.ID, &tc.User.ID, "Game night")

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/spin", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var picked models.Idea
		testutil.ParseJSONResponse(t, rr, &picked)
		assert.Equal(t, "Game night", picked.Title)
	})

	t.Run("empty jar conflicts", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/spin", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("quota exhaustion maps to 429", func(t *testing.T) {
		limit := billing.ForPlan(models.PlanFree).SpinsPerDay
		for i := 0; i < limit+1; i++ {
			testutil.CreateTestIdea(t, tc.DB, tc.Jar.ID, &tc.User.ID, "Filler")
		}

		// Earlier subtests already consumed part of the allowance.
		status := http.StatusOK
		for i := 0; i < limit; i++ {
			req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/spin", nil, tc.Token)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			status = rr.Code
		}

		assert.Equal(t, http.StatusTooManyRequests, status)
	})
}

func TestIdeaHandler_UpdateDelete(t *testing.T) {
	router, tc := setupIdeaTestRouter(t)
	defer tc.Cleanup()

	idea := testutil.CreateTestIdea(t, tc.DB, tc.Jar.ID, &tc.User.ID, "Museum visit")

	t.Run("author updates", func(t *testing.T) {
		body := map[string]string{"title": "Science museum visit"}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/ideas/"+idea.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var updated models.Idea
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, "Science museum visit", updated.Title)
	})

	t.Run("outsider cannot update", func(t *testing.T) {
		member := testutil.CreateTestUser(t, tc.DB)
		testutil.CreateTestMembership(t, tc.DB, member.ID, tc.Jar.ID, models.RoleMember)
		memberToken := testutil.GenerateTestToken(t, tc.JWTService, member)

		body := map[string]string{"title": "Hijack"}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/ideas/"+idea.ID.String(), body, memberToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("author deletes", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/ideas/"+idea.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		req = testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/ideas/"+idea.ID.String(), nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}
