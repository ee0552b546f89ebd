package domain

import "context"

// Stats summarises rooms and reservations for the admin dashboard.
// swagger:model Stats
type Stats struct {
	RoomsTotal           int                       `json:"rooms_total"`
	RoomsBlocked         int                       `json:"rooms_blocked"`
	RoomsByCategory      map[RoomCategory]int      `json:"rooms_by_category"`
	ReservationsByStatus map[ReservationStatus]int `json:"reservations_by_status"`
}

// StatsService computes dashboard statistics.
type StatsService interface {
	Get(ctx context.Context) (*Stats, error)
}
