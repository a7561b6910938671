package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/graemedakers/decision-jar/internal/api/handlers"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/jars"
	"github.com/graemedakers/decision-jar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReminderTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jarService := jars.NewService(tc.DB, logger)
	handler := handlers.NewReminderHandler(tc.DB, jarService)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tc.JWTService))

			r.Route("/jars/{id}/reminders", func(r chi.Router) {
				r.Get("/", handler.List)
				r.Post("/", handler.Create)
			})
			r.Route("/reminders", func(r chi.Router) {
				r.Put("/{id}", handler.Update)
				r.Delete("/{id}", handler.Delete)
			})
		})
	})

	return r, tc
}

func TestReminderHandler_CreateAndList(t *testing.T) {
	router, tc := setupReminderTestRouter(t)
	defer tc.Cleanup()

	t.Run("create computes the next run", func(t *testing.T) {
		body := map[string]string{"cron_expr": "0 18 * * 5"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/reminders", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var reminder models.Reminder
		testutil.ParseJSONResponse(t, rr, &reminder)
		assert.Equal(t, "0 18 * * 5", reminder.CronExpr)
		assert.True(t, reminder.IsEnabled)
		assert.Greater(t, reminder.NextRunAt, time.Now().UTC().Unix())
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		body := map[string]string{"cron_expr": "whenever"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/jars/"+tc.Jar.ID.String()+"/reminders", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/jars/"+tc.Jar.ID.String()+"/reminders", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var list []models.Reminder
		testutil.ParseJSONResponse(t, rr, &list)
		assert.Len(t, list, 1)
	})

	t.Run("non-member cannot list", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB)
		strangerToken := testutil.GenerateTestToken(t, tc.JWTService, stranger)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/jars/"+tc.Jar.ID.String()+"/reminders", nil, strangerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestReminderHandler_UpdateDelete(t *testing.T) {
	router, tc := setupReminderTestRouter(t)
	defer tc.Cleanup()

	reminder := models.Reminder{
		JarID:     tc.Jar.ID,
		CronExpr:  "0 18 * * 5",
		IsEnabled: true,
		NextRunAt: time.Now().UTC().Add(time.Hour).Unix(),
	}
	require.NoError(t, tc.DB.Create(&reminder).Error)

	t.Run("disable", func(t *testing.T) {
		body := map[string]interface{}{"is_enabled": false}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/reminders/"+reminder.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var stored models.Reminder
		require.NoError(t, tc.DB.First(&stored, reminder.ID).Error)
		assert.False(t, stored.IsEnabled)
	})

	t.Run("reschedule recomputes the next run", func(t *testing.T) {
		body := map[string]interface{}{"cron_expr": "30 9 * * 1"}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/reminders/"+reminder.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var stored models.Reminder
		require.NoError(t, tc.DB.First(&stored, reminder.ID).Error)
		assert.Equal(t, "30 9 * * 1", stored.CronExpr)
		assert.Greater(t, stored.NextRunAt, time.Now().UTC().Unix())
	})

	t.Run("non-member cannot delete", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB)
		strangerToken := testutil.GenerateTestToken(t, tc.JWTService, stranger)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/reminders/"+reminder.ID.String(), nil, strangerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/reminders/"+reminder.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var count int64
		require.NoError(t, tc.DB.Model(&models.Reminder{}).Where("id = ?", reminder.ID).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("unknown reminder", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/reminders/"+reminder.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
