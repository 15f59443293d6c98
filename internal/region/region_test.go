package region

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRegion(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		system  string
		region  string
		wantErr error
	}{
		{"aws known region", SystemAWS, "eu-west-1", nil},
		{"aws unknown region", SystemAWS, "mars-north-1", ErrUnsupportedRegion},
		{"aws empty region", SystemAWS, "", ErrUnsupportedRegion},
		{"none accepts anything", SystemNone, "anywhere", nil},
		{"none accepts empty", SystemNone, "", nil},
		{"unknown system", "gcp", "us-central1", ErrUnsupportedSystem},
	}

	for _, tc := range testCases {

		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateRegion(tc.system, tc.region)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestCountryCode(t *testing.T) {
	t.Parallel()

	code, err := CountryCode(SystemAWS, "ap-northeast-1")
	require.NoError(t, err)
	require.Equal(t, "JP", code)

	code, err = CountryCode(SystemNone, "whatever")
	require.NoError(t, err)
	require.Equal(t, DefaultCountry, code)

	_, err = CountryCode(SystemAWS, "nowhere-1")
	require.ErrorIs(t, err, ErrUnsupportedRegion)

	_, err = CountryCode("azure", "westeurope")
	require.ErrorIs(t, err, ErrUnsupportedSystem)
}

func TestSystemsAndRegionsAreCopies(t *testing.T) {
	t.Parallel()

	got := Systems()
	require.ElementsMatch(t, []string{SystemAWS, SystemNone}, got)
	got[0] = "mutated"
	require.True(t, IsSupportedSystem(SystemAWS))
	require.False(t, IsSupportedSystem("mutated"))

	regions := AWSRegions()
	require.Len(t, regions, len(awsCountryCodes))
	require.IsNonDecreasing(t, regions)
}
