// Package model contains domain models passed between layers.
package model

import "time"

// Record is what the service keeps about one completed merge request.
// Fields mirror the GET /files/{id} response.
type Record struct {
	ID        int64      `json:"id"`
	StartDate string     `json:"start_date"` // as submitted
	EndDate   string     `json:"end_date"`   // as submitted
	Lag       int        `json:"n"`
	Format    string     `json:"format"`
	Daily     [][]string `json:"daily_vals"`
	Companies [][]string `json:"companies"`
	SenderIP  string     `json:"sender_ip"`
	RequestID string     `json:"request_id"`
	RowCount  int        `json:"row_count"`
	CreatedAt time.Time  `json:"created_at"`
}
