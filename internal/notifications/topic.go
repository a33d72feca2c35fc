// Package notifications provides real-time notification delivery over
// Redis pub/sub and websockets.
package notifications

import (
	"strings"

	"github.com/google/uuid"

	"courtyard/internal/models"
)

// Topic names double as Redis channel names, so one pattern subscription
// covers every delivery scope.
const (
	TopicAll            = "notify:all"
	topicResidentPrefix = "notify:resident:"
	topicBuildingPrefix = "notify:building:"
	topicRolePrefix     = "notify:role:"
)

// ResidentTopic is the private topic for one resident.
func ResidentTopic(residentID uuid.UUID) string {
	return topicResidentPrefix + residentID.String()
}

// BuildingTopic is the shared topic for a building's residents.
func BuildingTopic(buildingID uuid.UUID) string {
	return topicBuildingPrefix + buildingID.String()
}

// RoleTopic is the shared topic for staff holding a role.
func RoleTopic(role string) string {
	return topicRolePrefix + strings.ToUpper(role)
}

// ValidTopic reports whether a channel name belongs to the notification namespace.
func ValidTopic(channel string) bool {
	if channel == TopicAll {
		return true
	}
	return strings.HasPrefix(channel, topicResidentPrefix) ||
		strings.HasPrefix(channel, topicBuildingPrefix) ||
		strings.HasPrefix(channel, topicRolePrefix)
}

// TopicsFor maps a resolved audience to the topics a publish must hit.
// Resident audiences publish only to the private topic; everything else
// also reaches the shared feed so connected clients see it without
// holding a narrower subscription.
func TopicsFor(a models.Audience) []string {
	switch a.Kind {
	case models.AudienceResident:
		return []string{ResidentTopic(a.ResidentID)}
	case models.AudienceBuilding:
		return []string{TopicAll, BuildingTopic(a.BuildingID)}
	case models.AudienceRole:
		if a.Role == models.RoleAll {
			return []string{TopicAll}
		}
		return []string{TopicAll, RoleTopic(a.Role)}
	default:
		return []string{TopicAll}
	}
}

// SubscriptionTopics returns the topics one connected resident listens on,
// derived from their identity claims.
func SubscriptionTopics(residentID uuid.UUID, buildingID *uuid.UUID, role string) []string {
	topics := []string{TopicAll, ResidentTopic(residentID)}
	if buildingID != nil {
		topics = append(topics, BuildingTopic(*buildingID))
	}
	if role != "" {
		topics = append(topics, RoleTopic(role))
	}
	return topics
}
