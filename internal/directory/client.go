// Package directory is an HTTP client for the resident directory service,
// the system of record for residents, units and buildings.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Resident is a directory record for one person in the community.
type Resident struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	UnitID     *uuid.UUID `json:"unitId"`
	BuildingID *uuid.UUID `json:"buildingId"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Active     bool       `json:"active"`
}

// Unit is a directory record for a single unit.
type Unit struct {
	ID         uuid.UUID `json:"id"`
	BuildingID uuid.UUID `json:"buildingId"`
	Number     string    `json:"number"`
	Floor      int       `json:"floor"`
}

// Building is a directory record for a building.
type Building struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Client talks to the directory service. A zero base URL disables lookups;
// callers treat directory failures as non-fatal.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a directory client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("directory: no base URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory: unexpected status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode response: %w", err)
	}
	return nil
}

// ErrNotFound is returned when the directory has no record for the id.
var ErrNotFound = fmt.Errorf("directory: record not found")

// ResidentByUserID returns the resident record bound to an auth user.
func (c *Client) ResidentByUserID(ctx context.Context, userID uuid.UUID) (*Resident, error) {
	var r Resident
	if err := c.get(ctx, "/api/residents/by-user/"+userID.String(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// HouseholdMembers returns the active residents of a unit.
func (c *Client) HouseholdMembers(ctx context.Context, unitID uuid.UUID) ([]Resident, error) {
	var members []Resident
	if err := c.get(ctx, "/api/units/"+unitID.String()+"/residents", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// UnitByID returns one unit record.
func (c *Client) UnitByID(ctx context.Context, unitID uuid.UUID) (*Unit, error) {
	var u Unit
	if err := c.get(ctx, "/api/units/"+unitID.String(), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// BuildingByID returns one building record.
func (c *Client) BuildingByID(ctx context.Context, buildingID uuid.UUID) (*Building, error) {
	var b Building
	if err := c.get(ctx, "/api/buildings/"+buildingID.String(), &b); err != nil {
		return nil, err
	}
	return &b, nil
}
