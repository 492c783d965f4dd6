package models

import "time"

// UserPreferences are the travel preferences kept per user.
type UserPreferences struct {
	ID              string    `bson:"id" json:"id"`
	UserID          string    `bson:"user_id" json:"user_id"`
	PreferredHotel  string    `bson:"preferred_hotel" json:"preferred_hotel"`
	FrequentChanges bool      `bson:"frequent_changes" json:"frequent_changes"`
	AvoidLocations  string    `bson:"avoid_locations" json:"avoid_locations"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// CompanyProfile is the billing company registered for a user.
type CompanyProfile struct {
	UserID      string `bson:"user_id" json:"user_id"`
	CompanyName string `bson:"company_name" json:"company_name"`
	Industry    string `bson:"industry" json:"industry"`
	City        string `bson:"city" json:"city"`
	RFC         string `bson:"rfc" json:"rfc"`
}

// Profile aggregates everything shown on the profile view.
type Profile struct {
	UserID      string                `json:"user_id"`
	Company     *CompanyProfile       `json:"company,omitempty"`
	Preferences *UserPreferences      `json:"preferences,omitempty"`
	Payments    []PaymentHistoryEntry `json:"payments"`
}
