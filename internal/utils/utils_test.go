package utils_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/reconfile-dashboard/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestInitials(t *testing.T) {
	require.Equal(t, "JD", utils.Initials("john doe"))
	require.Equal(t, "JD", utils.Initials("John Doe Smith"))
	require.Equal(t, "M", utils.Initials("madonna"))
	require.Equal(t, "ÉA", utils.Initials("élodie  araújo"))
	require.Equal(t, "", utils.Initials("   "))
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "05/03/2024", utils.FormatDate(time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, "-", utils.FormatDate(time.Time{}))
}

func TestPointerHelpers(t *testing.T) {
	require.Equal(t, 0, utils.Value[int](nil))
	require.Equal(t, 7, utils.Value(utils.Ptr(7)))
	require.Equal(t, "fallback", utils.ValueOr(nil, "fallback"))
	require.Nil(t, utils.NonEmpty("  "))
	require.Equal(t, "acme", *utils.NonEmpty(" acme "))
}
