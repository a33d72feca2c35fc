package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResidentByUserID(t *testing.T) {
	userID := uuid.New()
	resident := Resident{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "Ada Martin",
		Role:   "RESIDENT",
		Active: true,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/residents/by-user/"+userID.String(), r.URL.Path)
		_ = json.NewEncoder(w).Encode(resident)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.ResidentByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, resident.ID, got.ID)
	assert.Equal(t, "Ada Martin", got.Name)
}

func TestHouseholdMembers(t *testing.T) {
	unitID := uuid.New()
	members := []Resident{
		{ID: uuid.New(), Name: "Ada", Active: true},
		{ID: uuid.New(), Name: "Ben", Active: true},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/units/"+unitID.String()+"/residents", r.URL.Path)
		_ = json.NewEncoder(w).Encode(members)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.HouseholdMembers(context.Background(), unitID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.UnitByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.BuildingByID(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNoBaseURL(t *testing.T) {
	client := NewClient("")
	_, err := client.ResidentByUserID(context.Background(), uuid.New())
	assert.Error(t, err)
}
