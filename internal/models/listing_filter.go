package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ListingFilter is a conjunction of optional criteria. Zero values impose no constraint.
type ListingFilter struct {
	MaxPrice float64 `json:"price,omitempty"`
	District string  `json:"district,omitempty"`
	Faculty  string  `json:"faculty,omitempty"`
	Gender   string  `json:"gender,omitempty"`
}

// ParseListingFilter reads price, district, faculty and gender from query parameters.
func ParseListingFilter(q url.Values) (ListingFilter, error) {
	f := ListingFilter{
		District: q.Get("district"),
		Faculty:  q.Get("faculty"),
		Gender:   q.Get("gender"),
	}
	if raw := strings.TrimSpace(q.Get("price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			return ListingFilter{}, fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
		}
		f.MaxPrice = price
	}
	return f, nil
}

// Query encodes the present criteria as query parameters ParseListingFilter accepts.
func (f ListingFilter) Query() url.Values {
	q := url.Values{}
	if f.MaxPrice > 0 {
		q.Set("price", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if f.District != "" {
		q.Set("district", f.District)
	}
	if f.Faculty != "" {
		q.Set("faculty", f.Faculty)
	}
	if f.Gender != "" {
		q.Set("gender", f.Gender)
	}
	return q
}

// IsEmpty reports whether the filter matches everything.
func (f ListingFilter) IsEmpty() bool {
	return f == ListingFilter{}
}

// Matches reports whether l satisfies every present criterion.
func (f ListingFilter) Matches(l Listing) bool {
	if f.MaxPrice > 0 && l.Price > f.MaxPrice {
		return false
	}
	if f.District != "" && l.District != f.District {
		return false
	}
	if f.Faculty != "" && l.Faculty != f.Faculty {
		return false
	}
	if f.Gender != "" && l.Gender != f.Gender {
		return false
	}
	return true
}

// ApplyListingFilter returns the listings matching f in their original order.
func ApplyListingFilter(listings []Listing, f ListingFilter) []Listing {
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}
