package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/residenciauni/residencia/pkg/contextkeys"
	"github.com/residenciauni/residencia/pkg/identity"
)

// FloorOccupancy is the room usage of one floor
type FloorOccupancy struct {
	Floor         int `json:"floor"`
	TotalRooms    int `json:"totalRooms"`
	OccupiedRooms int `json:"occupiedRooms"`
}

// Activity is an entry of the representative's recent activity feed
type Activity struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Resident   string `json:"resident"`
	RoomNumber *int   `json:"roomNumber,omitempty"`
	Time       string `json:"time,omitempty"`
}

// RepresentativeStats is the raw payload of the representative dashboard.
// Missing numbers decode as zero.
type RepresentativeStats struct {
	TotalResidents   int              `json:"totalResidents"`
	ActiveResidents  int              `json:"activeResidents"`
	TotalRooms       int              `json:"totalRooms"`
	OccupiedRooms    int              `json:"occupiedRooms"`
	FreeRooms        int              `json:"freeRooms"`
	ReportsCount     int              `json:"reportsCount"`
	Floor            *int             `json:"floor,omitempty"`
	Floors           []FloorOccupancy `json:"floors,omitempty"`
	RecentActivities []Activity       `json:"recentActivities,omitempty"`
}

// RepresentativeStats fetches the representative dashboard numbers
func (c *Client) RepresentativeStats(ctx context.Context) (RepresentativeStats, error) {
	var stats RepresentativeStats
	ctx = contextkeys.WithModule(ctx, "stats")
	if err := c.doJSON(ctx, http.MethodGet, "/stats/representative/dashboard", nil, &stats); err != nil {
		return RepresentativeStats{}, fmt.Errorf("failed to load representative stats: %w", err)
	}
	return stats, nil
}

// SearchResult is one hit of the global search
type SearchResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// SearchPath returns the search endpoint for a role
func SearchPath(role identity.Role) string {
	if role == identity.RoleRepresentative {
		return "/representative/search"
	}
	return "/resident/search"
}

// Search runs a role-scoped search. A blank query returns no results without a request.
func (c *Client) Search(ctx context.Context, role identity.Role, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	ctx = contextkeys.WithModule(ctx, "search")
	path := SearchPath(role) + "?query=" + url.QueryEscape(query)

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	results := []SearchResult{}
	if isEmpty(data) {
		return results, nil
	}
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return results, nil
}
