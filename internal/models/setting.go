package models

import "time"

// Setting is an admin personality/style row.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Guideline is an operator-editable directive. Keys starting with
// CustomGuidelinePrefix are free-form custom guidelines.
type Guideline struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const CustomGuidelinePrefix = "custom_"
