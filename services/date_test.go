package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"10-03-2024", "2024/03/10", "2024-13-01", "", "2024-02-30"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddCalendarYears(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2024-03-10", "2029-03-10"},
		{"2024-02-29", "2029-02-28"},
		{"2023-02-28", "2028-02-28"},
		{"2027-02-28", "2032-02-28"},
		{"2024-12-31", "2029-12-31"},
	}
	for _, tc := range cases {
		in, _ := ParseDate(tc.in)
		assert.Equal(t, tc.want, AddCalendarYears(in, 5).Format(DateLayout), tc.in)
	}
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 0, CeilDays(0))
	assert.Equal(t, 1, CeilDays(time.Minute))
	assert.Equal(t, 1, CeilDays(24*time.Hour))
	assert.Equal(t, 2, CeilDays(25*time.Hour))
	assert.Equal(t, 0, CeilDays(-time.Hour))
	assert.Equal(t, -1, CeilDays(-25*time.Hour))
}
