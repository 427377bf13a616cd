package model

import "time"

// Location is a place where sessions are held.  Hotspot locations
// apply stricter fairness exceptions to premium-day bidding by lower
// tiers.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the location.
//  Hotspot   – whether the location is high-demand regardless of date.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Location struct {
	ID        uint64    // locations.id
	Name      string    // locations.name
	Hotspot   bool      // locations.hotspot
	CreatedAt time.Time // locations.created_at
	UpdatedAt time.Time // locations.updated_at
}

// Weather holds the recorded conditions for a past session, keyed by
// session id.  Rows are written by an external scraper; the engine
// only reads them for the temperature ratios.
//
// Fields:
//  SessionID   – session the record belongs to.
//  Temperature – recorded temperature in degrees Celsius.
//  Rainfall    – recorded rainfall in millimeters.
type Weather struct {
	SessionID   uint64  // weathers.session_id
	Temperature float64 // weathers.temperature
	Rainfall    float64 // weathers.rainfall
}
