package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoModel struct{ err error }

func (e echoModel) Name() string { return "echo" }

func (e echoModel) Generate(_ context.Context, req Request) (string, error) {
	return req.Input, e.err
}

func TestObserveReportsCalls(t *testing.T) {
	var calls []string
	m := Observe(echoModel{}, func(model, schema string, elapsed time.Duration, err error) {
		calls = append(calls, model+"/"+schema)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	})

	out, err := m.Generate(context.Background(), Request{Input: "hi", SchemaName: "skills"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, "echo", m.Name())
	assert.Equal(t, []string{"echo/skills"}, calls)
}

func TestObservePassesErrors(t *testing.T) {
	boom := errors.New("boom")
	var seen error
	m := Observe(echoModel{err: boom}, func(_, _ string, _ time.Duration, err error) { seen = err })

	_, err := m.Generate(context.Background(), Request{Input: "hi"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, seen, boom)

	_, err = Observe(echoModel{}, nil).Generate(context.Background(), Request{Input: "x"})
	assert.NoError(t, err)
}
