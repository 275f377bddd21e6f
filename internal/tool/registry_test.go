package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewReadTool("/work"))

	got, ok := r.Get("read")
	require.True(t, ok)
	assert.Equal(t, "read", got.Name())

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestRegistryNames(t *testing.T) {
	r := DefaultRegistry("/work")
	assert.Equal(t, []string{"bash", "glob", "read", "webfetch", "write"}, r.Names())
}

func TestRegistrySuggest(t *testing.T) {
	r := DefaultRegistry("/work")

	suggestion, ok := r.Suggest("rad")
	require.True(t, ok)
	assert.Equal(t, "read", suggestion)

	_, ok = r.Suggest("completely-unrelated-name")
	assert.False(t, ok)
}

func TestRegistryLookupNotFound(t *testing.T) {
	r := DefaultRegistry("/work")

	_, err := r.Lookup("wrte")
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "wrte", notFound.Name)
	assert.Equal(t, "write", notFound.Suggestion)
	assert.Contains(t, err.Error(), "did you mean")
}
