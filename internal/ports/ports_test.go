package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/model"
)

func TestResolveRangeCoversEveryPort(t *testing.T) {
	cases := []ByRange{
		{Start: 0, End: 0},
		{Start: 1000, End: 1002},
		{Start: 1, End: 1024},
		{Start: 65530, End: 65535},
	}
	for _, r := range cases {
		t.Run(r.String(), func(t *testing.T) {
			specs, err := Resolve(context.Background(), r)
			require.NoError(t, err)
			require.Len(t, specs, r.End-r.Start+1)

			seen := make(map[int]struct{}, len(specs))
			for i, s := range specs {
				assert.Equal(t, r.Start+i, s.Port)
				assert.Equal(t, model.UnknownProtocol, s.Protocol)
				assert.Equal(t, model.ScannedDescription, s.Description)
				seen[s.Port] = struct{}{}
			}
			assert.Len(t, seen, len(specs))
		})
	}
}

func TestResolveRangeRejectsInverted(t *testing.T) {
	_, err := Resolve(context.Background(), ByRange{Start: 10, End: 5})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Resolve(context.Background(), ByRange{Start: 10, End: 70000})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveCatalogVerbatim(t *testing.T) {
	src := catalog.Static{
		{Port: 443, Protocol: "HTTPS"},
		{Port: 80, Protocol: "HTTP"},
	}
	specs, err := Resolve(context.Background(), ByCatalog{Source: src})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, 443, specs[0].Port)
	assert.Equal(t, "HTTP", specs[1].Protocol)
}

type failingSource struct{ err error }

func (f failingSource) Load(context.Context) ([]model.PortSpec, error) { return nil, f.err }

func TestResolveCatalogFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := Resolve(context.Background(), ByCatalog{Source: failingSource{boom}})
	assert.ErrorIs(t, err, boom)

	_, err = Resolve(context.Background(), ByCatalog{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseArgs(t *testing.T) {
	a, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTarget, a.Target)
	assert.Nil(t, a.Range)
	assert.IsType(t, ByCatalog{}, a.Selection(catalog.Static{}, "test"))

	a, err = ParseArgs([]string{"example.com"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", a.Target)
	assert.Nil(t, a.Range)

	a, err = ParseArgs([]string{"10.0.0.1", "22"})
	require.NoError(t, err)
	require.NotNil(t, a.Range)
	assert.Equal(t, ByRange{Start: 22, End: 22}, *a.Range)

	a, err = ParseArgs([]string{"10.0.0.1", "1000", "1002"})
	require.NoError(t, err)
	assert.Equal(t, ByRange{Start: 1000, End: 1002}, a.Selection(nil, ""))
}

func TestParseArgsErrors(t *testing.T) {
	cases := map[string]struct {
		args []string
		want error
	}{
		"non numeric start": {[]string{"h", "abc"}, ErrInvalidArgument},
		"non numeric end":   {[]string{"h", "1", "x"}, ErrInvalidArgument},
		"negative":          {[]string{"h", "-1"}, ErrInvalidArgument},
		"too large":         {[]string{"h", "1", "65536"}, ErrInvalidArgument},
		"inverted":          {[]string{"h", "100", "10"}, ErrInvalidRange},
		"empty target":      {[]string{" "}, ErrInvalidArgument},
		"too many":          {[]string{"h", "1", "2", "3"}, ErrInvalidArgument},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArgs(tc.args)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
