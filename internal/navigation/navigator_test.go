package navigation

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVisitor struct {
	visited []string
	err     error
}

func (f *fakeVisitor) Visit(_ context.Context, target string) error {
	f.visited = append(f.visited, target)
	return f.err
}

func TestHTTPNavigatorVisitsThenLeavesOnce(t *testing.T) {
	t.Parallel()

	visitor := &fakeVisitor{}
	var left []string
	navigator := NewHTTPNavigator(visitor, func(target string) {
		left = append(left, target)
	}, log.New(io.Discard))

	require.NoError(t, navigator.Navigate(context.Background(), " /logout "))
	err := navigator.Navigate(context.Background(), "/logout")
	assert.ErrorIs(t, err, ErrAlreadyNavigated)

	assert.Equal(t, []string{"/logout"}, visitor.visited)
	assert.Equal(t, []string{"/logout"}, left)
}

func TestHTTPNavigatorLeavesWhenVisitFails(t *testing.T) {
	t.Parallel()

	visitor := &fakeVisitor{err: errors.New("connection refused")}
	left := false
	navigator := NewHTTPNavigator(visitor, func(string) { left = true }, log.New(io.Discard))

	require.NoError(t, navigator.Navigate(context.Background(), "/logout"))
	assert.True(t, left)
}

func TestHTTPNavigatorWithoutVisitorOrHook(t *testing.T) {
	t.Parallel()

	navigator := NewHTTPNavigator(nil, nil, nil)
	assert.NoError(t, navigator.Navigate(context.Background(), "/logout"))
}

func TestRecorderKeepsOrder(t *testing.T) {
	t.Parallel()

	recorder := &Recorder{}
	require.NoError(t, recorder.Navigate(context.Background(), "/a"))
	require.NoError(t, recorder.Navigate(context.Background(), "/b"))

	targets := recorder.Targets()
	assert.Equal(t, []string{"/a", "/b"}, targets)
	targets[0] = "mutated"
	assert.Equal(t, "/a", recorder.Targets()[0])
}
