package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/graemedakers/decision-jar/internal/auth"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.User{},
		&models.Jar{},
		&models.Membership{},
		&models.Idea{},
		&models.DeviceToken{},
		&models.Reminder{},
		&models.DailyUsage{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestUser creates a test user on the free plan
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		Plan:         models.PlanFree,
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestJar creates a jar owned by the given user, with an owner
// membership and the user's active-jar pointer set to it
func CreateTestJar(t *testing.T, db *gorm.DB, owner *models.User) *models.Jar {
	t.Helper()

	refCode, err := models.NewRefCode()
	if err != nil {
		t.Fatalf("failed to generate ref code: %v", err)
	}

	jar := &models.Jar{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:    "Test Jar",
		Topic:   "date_night",
		RefCode: refCode,
		OwnerID: owner.ID,
	}

	if err := db.Create(jar).Error; err != nil {
		t.Fatalf("failed to create test jar: %v", err)
	}

	CreateTestMembership(t, db, owner.ID, jar.ID, models.RoleOwner)

	if err := db.Model(&models.User{}).Where("id = ?", owner.ID).
		Update("active_jar_id", jar.ID).Error; err != nil {
		t.Fatalf("failed to set active jar: %v", err)
	}
	owner.ActiveJarID = &jar.ID

	return jar
}

// CreateTestMembership creates an active membership
func CreateTestMembership(t *testing.T, db *gorm.DB, userID, jarID uuid.UUID, role models.MembershipRole) *models.Membership {
	t.Helper()

	membership := &models.Membership{
		Base: models.Base{
			ID: uuid.New(),
		},
		UserID:   userID,
		JarID:    jarID,
		Role:     role,
		Status:   models.MembershipActive,
		JoinedAt: time.Now().UTC(),
	}

	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}

	return membership
}

// CreateTestIdea creates an unpicked idea in the given jar
func CreateTestIdea(t *testing.T, db *gorm.DB, jarID uuid.UUID, suggestedBy *uuid.UUID, title string) *models.Idea {
	t.Helper()

	idea := &models.Idea{
		Base: models.Base{
			ID: uuid.New(),
		},
		JarID:         jarID,
		Title:         title,
		Category:      "date_night",
		Source:        models.IdeaSourceMember,
		SuggestedByID: suggestedBy,
	}

	if err := db.Create(idea).Error; err != nil {
		t.Fatalf("failed to create test idea: %v", err)
	}

	return idea
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email, user.Plan)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	User       *models.User
	Jar        *models.Jar
	Token      string
}

// NewTestContext creates a complete test setup with DB, user, jar, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	user := CreateTestUser(t, db)
	jar := CreateTestJar(t, db, user)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		User:       user,
		Jar:        jar,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
