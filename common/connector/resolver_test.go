package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWholePlaceholderKeepsType(t *testing.T) {
	r := NewResolver(quietLogger())
	execCtx := Context{
		"payload": map[string]any{
			"user_id": "u-42",
			"count":   3,
			"active":  true,
		},
	}

	assert.Equal(t, "u-42", r.Resolve("${payload.user_id}", execCtx))
	assert.Equal(t, float64(3), r.Resolve("${payload.count}", execCtx))
	assert.Equal(t, true, r.Resolve("${payload.active}", execCtx))
}

func TestResolveEmbeddedPlaceholderStringifies(t *testing.T) {
	r := NewResolver(quietLogger())
	execCtx := Context{
		"payload": map[string]any{"user_id": "u-42", "count": 3},
	}

	assert.Equal(t, "user u-42 has 3 items",
		r.Resolve("user ${payload.user_id} has ${payload.count} items", execCtx))
}

func TestResolveUnresolvedStaysLiteral(t *testing.T) {
	r := NewResolver(quietLogger())
	execCtx := Context{"payload": map[string]any{}}

	assert.Equal(t, "${payload.missing}", r.Resolve("${payload.missing}", execCtx))
	assert.Equal(t, "id: ${nope}", r.Resolve("id: ${nope}", execCtx))
}

func TestResolveStepOutputLookup(t *testing.T) {
	r := NewResolver(quietLogger())
	execCtx := Context{
		"fetch": map[string]any{
			"status_code": 200,
			"response_data": map[string]any{
				"token": "tok-1",
			},
		},
	}

	assert.Equal(t, float64(200), r.Resolve("${fetch.status_code}", execCtx))
	assert.Equal(t, "tok-1", r.Resolve("${fetch.response_data.token}", execCtx))
}

func TestResolveWalksNestedStructures(t *testing.T) {
	r := NewResolver(quietLogger())
	execCtx := Context{
		"payload": map[string]any{"user_id": "u-42"},
	}

	in := map[string]any{
		"user":  "${payload.user_id}",
		"tags":  []any{"${payload.user_id}", "static"},
		"count": 7,
		"inner": map[string]any{"ref": "${payload.user_id}"},
	}

	out, ok := r.Resolve(in, execCtx).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u-42", out["user"])
	assert.Equal(t, []any{"u-42", "static"}, out["tags"])
	assert.Equal(t, 7, out["count"])
	assert.Equal(t, map[string]any{"ref": "u-42"}, out["inner"])
}

func TestResolveStringAlwaysYieldsString(t *testing.T) {
	r := NewResolver(quietLogger())
	execCtx := Context{
		"payload": map[string]any{"count": 3, "user_id": "u-42"},
	}

	assert.Equal(t, "3", r.ResolveString("${payload.count}", execCtx))
	assert.Equal(t, "u-42", r.ResolveString("${payload.user_id}", execCtx))
	assert.Equal(t, "plain", r.ResolveString("plain", execCtx))
}
