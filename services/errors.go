package services

// GeofenceError rejects a geo check-in made outside the attendance radius.
type GeofenceError struct {
	Distance    float64
	MaxDistance float64
	Message     string
}

func (e *GeofenceError) Error() string {
	return e.Message
}
