package notifications

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"courtyard/internal/models"
)

func TestTopicNames(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t, "notify:resident:11111111-2222-3333-4444-555555555555", ResidentTopic(id))
	assert.Equal(t, "notify:building:11111111-2222-3333-4444-555555555555", BuildingTopic(id))
	assert.Equal(t, "notify:role:MANAGER", RoleTopic("manager"))
}

func TestValidTopic(t *testing.T) {
	t.Parallel()
	assert.True(t, ValidTopic(TopicAll))
	assert.True(t, ValidTopic(ResidentTopic(uuid.New())))
	assert.True(t, ValidTopic(RoleTopic("GUARD")))
	assert.False(t, ValidTopic("chat:conv:1"))
	assert.False(t, ValidTopic("notify"))
}

func TestTopicsFor(t *testing.T) {
	t.Parallel()
	residentID := uuid.New()
	buildingID := uuid.New()

	t.Run("resident audience is private only", func(t *testing.T) {
		topics := TopicsFor(models.Audience{Kind: models.AudienceResident, ResidentID: residentID})
		assert.Equal(t, []string{ResidentTopic(residentID)}, topics)
	})

	t.Run("building audience reaches shared feed and building topic", func(t *testing.T) {
		topics := TopicsFor(models.Audience{Kind: models.AudienceBuilding, BuildingID: buildingID})
		assert.Equal(t, []string{TopicAll, BuildingTopic(buildingID)}, topics)
	})

	t.Run("role audience", func(t *testing.T) {
		topics := TopicsFor(models.Audience{Kind: models.AudienceRole, Role: "MANAGER"})
		assert.Equal(t, []string{TopicAll, RoleTopic("MANAGER")}, topics)
	})

	t.Run("role ALL collapses to shared feed", func(t *testing.T) {
		topics := TopicsFor(models.Audience{Kind: models.AudienceRole, Role: models.RoleAll})
		assert.Equal(t, []string{TopicAll}, topics)
	})

	t.Run("broadcast audience", func(t *testing.T) {
		topics := TopicsFor(models.Audience{Kind: models.AudienceBroadcast})
		assert.Equal(t, []string{TopicAll}, topics)
	})
}

func TestSubscriptionTopics(t *testing.T) {
	t.Parallel()
	residentID := uuid.New()
	buildingID := uuid.New()

	topics := SubscriptionTopics(residentID, &buildingID, "GUARD")
	assert.Equal(t, []string{
		TopicAll,
		ResidentTopic(residentID),
		BuildingTopic(buildingID),
		RoleTopic("GUARD"),
	}, topics)

	minimal := SubscriptionTopics(residentID, nil, "")
	assert.Equal(t, []string{TopicAll, ResidentTopic(residentID)}, minimal)
}
