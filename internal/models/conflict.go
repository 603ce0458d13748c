package models

// ConflictDetail names the existing record a write collided with.
type ConflictDetail struct {
	Kind         string `json:"kind"`
	ConflictWith string `json:"conflict_with"`
}
