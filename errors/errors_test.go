package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrapf(ErrConflict, "POST /incidents external_ref=%s", "INC-7")

	assert.True(t, IsConflictError(wrapped))
	assert.Contains(t, wrapped.Error(), "INC-7")
	assert.Contains(t, wrapped.Error(), "resource conflict")
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", Wrap(ErrTimeout, "create"), true},
		{"unavailable", Wrap(ErrServiceUnavailable, "create"), true},
		{"rate limited", ErrRateLimited, true},
		{"conflict", Wrap(ErrConflict, "create"), false},
		{"invalid", NewInvalidRequestError("status %d", 422), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return "bad field " + e.field
}

func TestAs(t *testing.T) {
	wrapped := Wrap(&fieldError{field: "severity"}, "record 3")

	var target *fieldError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "severity", target.field)
}

func TestHintsAndDetails(t *testing.T) {
	err := New("probe failed")
	err = WithHint(err, "check the staging base_url")
	err = WithDetailf(err, "%d of %d endpoints failed", 1, 5)
	err = Wrap(err, "import aborted")

	assert.Contains(t, GetAllHints(err), "check the staging base_url")
	assert.Contains(t, GetAllDetails(err), "1 of 5 endpoints failed")
	assert.Contains(t, err.Error(), "import aborted")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsInvalidRequestError(nil))
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")
	assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
}

func ExampleWrap() {
	err := Wrap(New("unexpected EOF"), "malformed source")
	fmt.Println(err)
	// Output: malformed source: unexpected EOF
}
