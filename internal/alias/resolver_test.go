package alias

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup map[string]map[string]string

func (m mapLookup) Lookup(_ context.Context, scope, id string) (string, bool, error) {
	c, ok := m[scope][id]
	return c, ok, nil
}

type failingLookup struct{}

func (failingLookup) Lookup(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("boom")
}

func TestResolveHit(t *testing.T) {
	r := NewResolver(mapLookup{"owner@test.com": {"imported_bob": "bob"}})

	got, err := r.Resolve(context.Background(), "Owner@Test.com", "  IMPORTED_Bob ")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
}

func TestResolveMissReturnsNormalizedID(t *testing.T) {
	r := NewResolver(mapLookup{})

	got, err := r.Resolve(context.Background(), "owner@test.com", "NewFriend")
	require.NoError(t, err)
	assert.Equal(t, "newfriend", got)
}

func TestResolveIsScopedPerAccount(t *testing.T) {
	r := NewResolver(mapLookup{"a@test.com": {"x": "alice"}})

	got, err := r.Resolve(context.Background(), "b@test.com", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestResolveRejectsChain(t *testing.T) {
	r := NewResolver(mapLookup{"a@test.com": {"x": "y", "y": "z"}})

	_, err := r.Resolve(context.Background(), "a@test.com", "x")
	var cycle *AliasCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"x", "y", "z"}, cycle.Path)
	assert.Equal(t, "a@test.com", cycle.Scope)
}

func TestResolveRejectsCycle(t *testing.T) {
	r := NewResolver(mapLookup{"a@test.com": {"x": "y", "y": "x"}})

	_, err := r.Resolve(context.Background(), "a@test.com", "x")
	var cycle *AliasCycleError
	assert.ErrorAs(t, err, &cycle)
}

func TestResolvePropagatesLookupError(t *testing.T) {
	r := NewResolver(failingLookup{})

	_, err := r.Resolve(context.Background(), "a@test.com", "x")
	assert.Error(t, err)
}

func TestResolveAllDedupes(t *testing.T) {
	r := NewResolver(mapLookup{"a@test.com": {"old_bob": "bob"}})

	got, err := r.ResolveAll(context.Background(), "a@test.com", []string{"Alice", "old_bob", "", "BOB", "carol"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, got)
}

func TestIsAlias(t *testing.T) {
	r := NewResolver(mapLookup{"a@test.com": {"old_bob": "bob"}})

	ok, err := r.IsAlias(context.Background(), "a@test.com", "OLD_BOB")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsAlias(context.Background(), "a@test.com", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}
