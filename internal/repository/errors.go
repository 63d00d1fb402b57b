// Package repository implements durable storage for facilities,
// reservations and reminders on MySQL, including the transactional
// booking store consumed by the engine.  Sentinel errors defined here
// let handlers distinguish failure scenarios without inspecting SQL
// driver errors.
package repository

import "errors"

// ErrFacilityNotFound is returned when a facility id does not exist.
var ErrFacilityNotFound = errors.New("facility not found")

// ErrReservationNotFound is returned when a reservation id does not
// exist.
var ErrReservationNotFound = errors.New("reservation not found")
