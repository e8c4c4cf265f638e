package trips

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// columns maps dataset headers onto Trip fields.
var columns = map[string]func(*Trip, string){
	"Trip ID":                 func(t *Trip, v string) { t.TripID = v },
	"Membership or Pass Type": func(t *Trip, v string) { t.MembershipType = v },
	"Membership Type":         func(t *Trip, v string) { t.MembershipType = v },
	"Bicycle ID":              func(t *Trip, v string) { t.BicycleID = v },
	"Bike Type":               func(t *Trip, v string) { t.BikeType = v },
	"Checkout Datetime":       func(t *Trip, v string) { t.CheckoutDatetime = v },
	"Checkout Date":           func(t *Trip, v string) { t.CheckoutDate = v },
	"Checkout Time":           func(t *Trip, v string) { t.CheckoutTime = v },
	"Checkout Kiosk ID":       func(t *Trip, v string) { t.CheckoutKioskID = v },
	"Checkout Kiosk":          func(t *Trip, v string) { t.CheckoutKiosk = v },
	"Return Kiosk ID":         func(t *Trip, v string) { t.ReturnKioskID = v },
	"Return Kiosk":            func(t *Trip, v string) { t.ReturnKiosk = v },
	"Trip Duration Minutes":   func(t *Trip, v string) { t.DurationMinutes = v },
	"Month":                   func(t *Trip, v string) { t.Month = v },
	"Year":                    func(t *Trip, v string) { t.Year = v },
}

// ReadCSV decodes a MetroBike trips export, calling fn for every row that has
// a trip ID. Unknown columns are ignored.
func ReadCSV(r io.Reader, fn func(Trip) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	setters := make([]func(*Trip, string), len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		setters[i] = columns[name]
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read csv line %d: %w", line, err)
		}

		var t Trip
		for i, v := range rec {
			if i < len(setters) && setters[i] != nil {
				setters[i](&t, strings.TrimSpace(v))
			}
		}
		if t.TripID == "" {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

// Open returns a reader for a local path or an http(s) URL.
func Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open trips file: %w", err)
		}
		return f, nil
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download trips: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}
