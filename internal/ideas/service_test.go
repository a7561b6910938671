package ideas_test

import (
	"testing"

	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*ideas.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return ideas.NewService(db, billing.NewService(db)), db
}

func TestService_Add(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	jar := testutil.CreateTestJar(t, db, owner)
	ctx := testutil.TestContext(t)

	t.Run("member can add", func(t *testing.T) {
		idea, err := svc.Add(ctx, owner.ID, jar.ID, ideas.AddInput{
			Title:    "Sunset walk",
			Category: models.CategoryOutdoors,
		})
		require.NoError(t, err)
		assert.Equal(t, models.IdeaSourceMember, idea.Source)
		require.NotNil(t, idea.SuggestedByID)
		assert.Equal(t, owner.ID, *idea.SuggestedByID)
	})

	t.Run("non-member cannot add", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, db)
		_, err := svc.Add(ctx, stranger.ID, jar.ID, ideas.AddInput{Title: "Nope"})
		assert.ErrorIs(t, err, ideas.ErrNotMember)
	})
}

func TestService_List(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	jar := testutil.CreateTestJar(t, db, owner)
	ctx := testutil.TestContext(t)

	testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "First")
	testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "Second")

	list, err := svc.List(ctx, owner.ID, jar.ID, ideas.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.List(ctx, owner.ID, jar.ID, ideas.ListFilter{Category: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_UpdateDelete_Authorization(t *testing.T) {
	svc, db := newTestService(t)
	owner := testutil.CreateTestUser(t, db)
	jar := testutil.CreateTestJar(t, db, owner)
	member := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, member.ID, jar.ID, models.RoleMember)
	ctx := testutil.TestContext(t)

	idea := testutil.CreateTestIdea(t, db, jar.ID, &member.ID, "Cooking class")

	t.Run("author can update", func(t *testing.T) {
		updated, err := svc.Update(ctx, member.ID, idea.ID, ideas.UpdateInput{Title: "Thai cooking class"})
		require.NoError(t, err)
		assert.Equal(t, "Thai cooking class", updated.Title)
	})

	t.Run("jar owner can update", func(t *testing.T) {
		_, err := svc.Update(ctx, owner.ID, idea.ID, ideas.UpdateInput{CostHint: "medium"})
		assert.NoError(t, err)
	})

	t.Run("other members cannot", func(t *testing.T) {
		other := testutil.CreateTestUser(t, db)
		testutil.CreateTestMembership(t, db, other.ID, jar.ID, models.RoleMember)
		_, err := svc.Update(ctx, other.ID, idea.ID, ideas.UpdateInput{Title: "Hijack"})
		assert.ErrorIs(t, err, ideas.ErrNotAllowed)
	})

	t.Run("author can delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, member.ID, idea.ID))
		err := svc.Delete(ctx, member.ID, idea.ID)
		assert.ErrorIs(t, err, ideas.ErrIdeaNotFound)
	})
}

func TestService_Spin(t *testing.T) {
	t.Run("picks an unpicked idea and marks it", func(t *testing.T) {
		svc, db := newTestService(t)
		owner := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, owner)
		ctx := testutil.TestContext(t)

		testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "Only option")

		picked, err := svc.Spin(ctx, owner, jar.ID)
		require.NoError(t, err)
		assert.Equal(t, "Only option", picked.Title)

		var stored models.Idea
		require.NoError(t, db.First(&stored, picked.ID).Error)
		require.NotNil(t, stored.PickedAt)
		require.NotNil(t, stored.PickedByID)
		assert.Equal(t, owner.ID, *stored.PickedByID)
	})

	t.Run("empty jar reports no ideas left", func(t *testing.T) {
		svc, db := newTestService(t)
		owner := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, owner)

		_, err := svc.Spin(testutil.TestContext(t), owner, jar.ID)
		assert.ErrorIs(t, err, ideas.ErrJarEmpty)
	})

	t.Run("picked ideas are not picked again", func(t *testing.T) {
		svc, db := newTestService(t)
		owner := testutil.CreateTestUser(t, db)
		owner.Plan = models.PlanPremium // avoid the free spin cap in this loop
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", owner.ID).
			Update("plan", models.PlanPremium).Error)
		jar := testutil.CreateTestJar(t, db, owner)
		ctx := testutil.TestContext(t)

		testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "A")
		testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "B")
		testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "C")

		seen := map[string]bool{}
		for i := 0; i < 3; i++ {
			picked, err := svc.Spin(ctx, owner, jar.ID)
			require.NoError(t, err)
			assert.False(t, seen[picked.Title], "idea %q picked twice", picked.Title)
			seen[picked.Title] = true
		}

		_, err := svc.Spin(ctx, owner, jar.ID)
		assert.ErrorIs(t, err, ideas.ErrJarEmpty)
	})

	t.Run("free plan spin allowance is enforced", func(t *testing.T) {
		svc, db := newTestService(t)
		owner := testutil.CreateTestUser(t, db)
		jar := testutil.CreateTestJar(t, db, owner)
		ctx := testutil.TestContext(t)

		limit := billing.ForPlan(models.PlanFree).SpinsPerDay
		for i := 0; i < limit+1; i++ {
			testutil.CreateTestIdea(t, db, jar.ID, &owner.ID, "Idea")
		}

		for i := 0; i < limit; i++ {
			_, err := svc.Spin(ctx, owner, jar.ID)
			require.NoError(t, err)
		}

		_, err := svc.Spin(ctx, owner, jar.ID)
		assert.ErrorIs(t, err, billing.ErrQuotaExceeded)
	})
}
