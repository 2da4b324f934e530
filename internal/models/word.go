package models

// Word represents a secret word with its hints
type Word struct {
	Word         string `json:"word"`
	Hint         string `json:"hint"`
	ImpostorHint string `json:"impostorHint"`
	Category     string `json:"category,omitempty"`
}

// Category is a named group of words
type Category struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Premium bool   `json:"premium,omitempty"`
	Words   []Word `json:"words"`
}
