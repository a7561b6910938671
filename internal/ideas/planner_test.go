package ideas_test

import (
	"context"
	"testing"

	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/llm"
	"github.com/graemedakers/decision-jar/internal/testutil"
	"github.com/graemedakers/decision-jar/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeCompleter replays canned responses in order.
type fakeCompleter struct {
	responses []string
	calls     []llm.CompletionRequest
	usedKey   string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeCompleter) WithAPIKey(key string) llm.Completer {
	f.usedKey = key
	return f
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		answer string
		want   string
	}{
		{"food", models.CategoryFood},
		{" Date_Night \n", models.CategoryDateNight},
		{`"outdoors"`, models.CategoryOutdoors},
		{"date night", models.CategoryDateNight},
		{"category: travel", models.CategoryTravel},
		{"I think budget fits best.", models.CategoryBudget},
		{"something else entirely", models.CategorySurprise},
		{"", models.CategorySurprise},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, ideas.ParseIntent(tt.answer))
		})
	}
}

func newTestPlanner(t *testing.T, fake *fakeCompleter) (*ideas.Planner, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	encryptor, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	return ideas.NewPlanner(db, fake, billing.NewService(db), encryptor), db
}

func TestPlanner_Suggest(t *testing.T) {
	t.Run("stores parsed ideas with classified category", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{
			"food",
			`Here you go:
[{"title": "Taco crawl", "description": "Three taquerias, one night", "cost_hint": "low"},
 {"title": "Make pasta from scratch", "cost_hint": "low"}]`,
		}}
		planner, db := newTestPlanner(t, fake)
		user := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, user)

		stored, err := planner.Suggest(testutil.TestContext(t), user.ID, jar.ID, "cheap dinner ideas", 5)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, "Taco crawl", stored[0].Title)
		assert.Equal(t, models.CategoryFood, stored[0].Category)
		assert.Equal(t, models.IdeaSourceAI, stored[0].Source)

		var count int64
		require.NoError(t, db.Model(&models.Idea{}).Where("jar_id = ?", jar.ID).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("unusable model output is an error, not silent success", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"surprise", "I cannot help with that."}}
		planner, db := newTestPlanner(t, fake)
		user := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, user)

		_, err := planner.Suggest(testutil.TestContext(t), user.ID, jar.ID, "anything", 3)
		assert.ErrorIs(t, err, ideas.ErrNoIdeasGenerated)
	})

	t.Run("caps stored ideas at the requested count", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{
			"outdoors",
			`[{"title":"A"},{"title":"B"},{"title":"C"},{"title":"D"}]`,
		}}
		planner, db := newTestPlanner(t, fake)
		user := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, user)

		stored, err := planner.Suggest(testutil.TestContext(t), user.ID, jar.ID, "hikes", 2)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("enforces the daily AI allowance", func(t *testing.T) {
		limit := billing.ForPlan(models.PlanFree).AIRequestsPerDay
		responses := make([]string, 0, limit*2)
		for i := 0; i < limit; i++ {
			responses = append(responses, "food", `[{"title":"Idea"}]`)
		}
		fake := &fakeCompleter{responses: responses}
		planner, db := newTestPlanner(t, fake)
		user := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, user)
		ctx := testutil.TestContext(t)

		for i := 0; i < limit; i++ {
			_, err := planner.Suggest(ctx, user.ID, jar.ID, "dinner", 1)
			require.NoError(t, err)
		}

		_, err := planner.Suggest(ctx, user.ID, jar.ID, "dinner", 1)
		assert.ErrorIs(t, err, billing.ErrQuotaExceeded)
	})

	t.Run("premium user's stored key is used", func(t *testing.T) {
		fake := &fakeCompleter{responses: []string{"travel", `[{"title":"Road trip"}]`}}
		db := testutil.SetupTestDB(t)
		t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

		// Planner and stored key must share an encryptor so the key
		// round-trips.
		encryptor, err := crypto.NewEncryptor("")
		require.NoError(t, err)
		planner := ideas.NewPlanner(db, fake, billing.NewService(db), encryptor)

		user := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, user)

		keyCipher, err := encryptor.EncryptString("sk-user-own-key")
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"plan":            models.PlanPremium,
				"llm_api_key_enc": keyCipher,
			}).Error)

		_, err = planner.Suggest(testutil.TestContext(t), user.ID, jar.ID, "vacation", 1)
		require.NoError(t, err)
		assert.Equal(t, "sk-user-own-key", fake.usedKey)
	})
}
