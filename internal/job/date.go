package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the month/day/year format used on the wire and in trip records.
const DateLayout = "01/02/2006"

// Date is a calendar day serialized as MM/DD/YYYY.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("date %q must match MM/DD/YYYY", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
