package taxonomy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	err error
}

func (f fakeClient) Name() string { return "fake" }

func (f fakeClient) Search(context.Context, string, string, int) ([]Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []Candidate{{ID: "1", URI: "urn:1", Title: "One"}}, nil
}

func TestObserve(t *testing.T) {
	var sources []string
	var errs []error
	fn := func(source string, elapsed time.Duration, err error) {
		sources = append(sources, source)
		errs = append(errs, err)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	}

	c := Observe(fakeClient{}, fn)
	assert.Equal(t, "fake", c.Name())
	out, err := c.Search(context.Background(), "python", "en", 5)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = Observe(fakeClient{err: ErrUnavailable}, fn).Search(context.Background(), "python", "en", 5)
	require.ErrorIs(t, err, ErrUnavailable)

	assert.Equal(t, []string{"fake", "fake"}, sources)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrUnavailable)

	_, err = Observe(fakeClient{}, nil).Search(context.Background(), "x", "en", 1)
	require.NoError(t, err)
}
