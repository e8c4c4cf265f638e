package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSubmit(t *testing.T) {
	tests := []struct {
		name   string
		req    SubmitRequest
		fields []string
	}{
		{"valid", SubmitRequest{StartDate: "05/01/2020", EndDate: "06/01/2020"}, nil},
		{"missing both", SubmitRequest{}, []string{"start_date", "end_date"}},
		{"iso date", SubmitRequest{StartDate: "2020-05-01", EndDate: "06/01/2020"}, []string{"start_date"}},
		{"impossible day", SubmitRequest{StartDate: "05/01/2020", EndDate: "02/30/2020"}, []string{"end_date"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSubmit(tt.req)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestParsePage(t *testing.T) {
	p, errs := ParsePage("", "")
	require.Empty(t, errs)
	assert.Equal(t, Page{}, p)

	p, errs = ParsePage("10", "25")
	require.Empty(t, errs)
	assert.Equal(t, Page{Offset: 10, Limit: 25}, p)

	_, errs = ParsePage("-1", "5")
	require.Len(t, errs, 1)
	assert.Equal(t, "offset", errs[0].Field)

	_, errs = ParsePage("0", "-1")
	require.Len(t, errs, 1)
	assert.Equal(t, "limit", errs[0].Field)

	_, errs = ParsePage("abc", "1")
	require.Len(t, errs, 1)
	assert.Equal(t, "offset: must be an integer", errs.Error())
}
