package model

// PointsPlaceholder is substituted with the rule's point value when a message is rendered.
const PointsPlaceholder = "{points}"

// PointRule binds a keyword to the points it awards.
type PointRule struct {
	Keyword     string `json:"keyword" yaml:"keyword" validate:"required"`
	Points      int    `json:"points" yaml:"points" validate:"required,gt=0"`
	Message     string `json:"message" yaml:"message" validate:"required,placeholder"`
	Description string `json:"description" yaml:"description"`
}

// MatchResult is one rule hit inside an inbound message.
type MatchResult struct {
	Keyword     string `json:"keyword"`
	Points      int    `json:"points"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// Action returns the text recorded in the ledger for this match.
func (m MatchResult) Action() string {
	if m.Description != "" {
		return m.Description
	}
	return m.Keyword
}
