package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Listing is a room-share advertisement posted by a student.
type Listing struct {
	ID                int64     `json:"id"`
	OwnerID           int64     `json:"owner_id"`
	StudentID         string    `json:"student_id"` // Derived from OwnerID, see OwnerRef
	Gender            string    `json:"gender"`
	Faculty           string    `json:"faculty"`
	Course            int       `json:"course"`
	Specialty         string    `json:"specialty"`
	District          string    `json:"district"`
	Address           string    `json:"address"`
	RoomsCount        int       `json:"rooms_count"`
	PeopleCount       int       `json:"people_count"`
	Price             float64   `json:"price"`
	UtilitiesIncluded bool      `json:"utilities_included"`
	AdditionalInfo    string    `json:"additional_info"`
	ContactPhone      string    `json:"contact_phone"`
	ContactTelegram   string    `json:"contact_telegram"`
	ContactInstagram  string    `json:"contact_instagram"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListingInput holds the client-editable attributes of a listing.
// Ownership is never part of it.
type ListingInput struct {
	Gender            string  `json:"gender"`
	Faculty           string  `json:"faculty"`
	Course            int     `json:"course"`
	Specialty         string  `json:"specialty"`
	District          string  `json:"district"`
	Address           string  `json:"address"`
	RoomsCount        int     `json:"rooms_count"`
	PeopleCount       int     `json:"people_count"`
	Price             float64 `json:"price"`
	UtilitiesIncluded bool    `json:"utilities_included"`
	AdditionalInfo    string  `json:"additional_info"`
	ContactPhone      string  `json:"contact_phone"`
	ContactTelegram   string  `json:"contact_telegram"`
	ContactInstagram  string  `json:"contact_instagram"`
}

// OwnerRef renders the legacy "user_<id>" owner reference the frontend keys on.
func OwnerRef(ownerID int64) string {
	return "user_" + strconv.FormatInt(ownerID, 10)
}

// Validate reports every required attribute that is missing or non-positive.
func (in ListingInput) Validate() error {
	var missing []string
	required := []struct {
		name string
		ok   bool
	}{
		{"gender", strings.TrimSpace(in.Gender) != ""},
		{"faculty", strings.TrimSpace(in.Faculty) != ""},
		{"course", in.Course > 0},
		{"specialty", strings.TrimSpace(in.Specialty) != ""},
		{"district", strings.TrimSpace(in.District) != ""},
		{"address", strings.TrimSpace(in.Address) != ""},
		{"rooms_count", in.RoomsCount > 0},
		{"people_count", in.PeopleCount > 0},
		{"price", in.Price > 0},
		{"contact_phone", strings.TrimSpace(in.ContactPhone) != ""},
	}
	for _, f := range required {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Apply copies the input onto the listing, leaving ID, OwnerID and CreatedAt untouched.
func (in ListingInput) Apply(l *Listing) {
	l.Gender = in.Gender
	l.Faculty = in.Faculty
	l.Course = in.Course
	l.Specialty = in.Specialty
	l.District = in.District
	l.Address = in.Address
	l.RoomsCount = in.RoomsCount
	l.PeopleCount = in.PeopleCount
	l.Price = in.Price
	l.UtilitiesIncluded = in.UtilitiesIncluded
	l.AdditionalInfo = in.AdditionalInfo
	l.ContactPhone = in.ContactPhone
	l.ContactTelegram = in.ContactTelegram
	l.ContactInstagram = in.ContactInstagram
}
