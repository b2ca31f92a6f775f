package models

import "time"

// CareSchedule holds the AI-generated care recommendations for a plant.
type CareSchedule struct {
	Light            string `json:"light"`
	Water            string `json:"water"`
	Humidity         string `json:"humidity"`
	Temperature      string `json:"temperature"`
	CareInstructions string `json:"care_instructions"`
}

// Plant represents a plant in the user's collection.
type Plant struct {
	ID           string
	UserID       string
	Name         string
	CareSchedule CareSchedule
	ImagePath    string // local path of the stored photo ("" = none)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
