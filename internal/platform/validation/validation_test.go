package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_Empty(t *testing.T) {
	e := Errors{}
	assert.NoError(t, e.Err())
}

func TestErrors_AddKeepsFirst(t *testing.T) {
	e := Errors{}
	e.Add("phone", "is required")
	e.Add("phone", "is not a valid phone number")

	assert.Equal(t, "is required", e["phone"])
	assert.True(t, e.Has("phone"))
	assert.False(t, e.Has("email"))
}

func TestErrors_ErrorString(t *testing.T) {
	e := Errors{}
	e.Add("name", "is required")
	e.Add("age", "must be positive")

	assert.Equal(t, "validation failed: age: must be positive; name: is required", e.Error())
}

func TestErrors_Checks(t *testing.T) {
	e := Errors{}
	e.Required("full_name", "  ")
	e.OneOf("gender", "unknown", map[string]bool{"male": true, "female": true, "other": true})
	e.OneOf("blood_group", "", map[string]bool{"A+": true})
	e.Phone("phone", "01711-000000")
	e.Phone("alt_phone", "abc")
	e.Email("email", "not-an-email")

	assert.Equal(t, "is required", e["full_name"])
	assert.Equal(t, "must be one of female, male, other", e["gender"])
	assert.False(t, e.Has("blood_group"))
	assert.False(t, e.Has("phone"))
	assert.True(t, e.Has("alt_phone"))
	assert.True(t, e.Has("email"))
}

func TestField(t *testing.T) {
	assert.Equal(t, "items[1].discount", Field("items", 1, "discount"))
}

func TestAs(t *testing.T) {
	e := Errors{"sku": "is required"}
	wrapped := fmt.Errorf("create medicine: %w", e)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "is required", got["sku"])

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
