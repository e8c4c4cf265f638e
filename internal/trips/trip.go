package trips

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CheckoutLayout is the date prefix of a checkout timestamp.
const CheckoutLayout = "01/02/2006"

// Trip is one bicycle-share trip as published in the MetroBike dataset.
// JSON names follow the dataset's column headers.
type Trip struct {
	TripID           string `json:"Trip ID"`
	MembershipType   string `json:"Membership or Pass Type,omitempty"`
	BicycleID        string `json:"Bicycle ID"`
	BikeType         string `json:"Bike Type,omitempty"`
	CheckoutDatetime string `json:"Checkout Datetime,omitempty"`
	CheckoutDate     string `json:"Checkout Date,omitempty"`
	CheckoutTime     string `json:"Checkout Time,omitempty"`
	CheckoutKioskID  string `json:"Checkout Kiosk ID,omitempty"`
	CheckoutKiosk    string `json:"Checkout Kiosk,omitempty"`
	ReturnKioskID    string `json:"Return Kiosk ID,omitempty"`
	ReturnKiosk      string `json:"Return Kiosk,omitempty"`
	DurationMinutes  string `json:"Trip Duration Minutes,omitempty"`
	Month            string `json:"Month,omitempty"`
	Year             string `json:"Year,omitempty"`
}

// HasCheckout reports whether the trip carries any checkout timestamp.
func (t Trip) HasCheckout() bool {
	return strings.TrimSpace(t.CheckoutDatetime) != "" || strings.TrimSpace(t.CheckoutDate) != ""
}

// CheckoutDay parses the calendar day of the checkout. The datetime column is
// preferred; the date-only column is the fallback.
func (t Trip) CheckoutDay() (time.Time, error) {
	raw := strings.TrimSpace(t.CheckoutDatetime)
	if raw == "" {
		raw = strings.TrimSpace(t.CheckoutDate)
	}
	if len(raw) < len(CheckoutLayout) {
		return time.Time{}, fmt.Errorf("checkout %q too short", raw)
	}
	day, err := time.Parse(CheckoutLayout, raw[:len(CheckoutLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse checkout %q: %w", raw, err)
	}
	return day, nil
}

// Source streams every trip record to fn, stopping at the first error.
type Source interface {
	Each(ctx context.Context, fn func(Trip) error) error
}

// SliceSource serves trips from memory.
type SliceSource []Trip

func (s SliceSource) Each(ctx context.Context, fn func(Trip) error) error {
	for _, t := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}
