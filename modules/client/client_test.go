package client

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowed = regexp.MustCompile(`^[A-Za-z0-9-]*$`)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"abc def":          "abc-def",
		"  Acme Corp  ":    "Acme-Corp",
		"client_1!":        "client1",
		"héllo wörld":      "hllo-wrld",
		"tab\tseparated":   "tab-separated",
		"already-clean-01": "already-clean-01",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestSanitizeOnlyAllowedAndIdempotent(t *testing.T) {
	inputs := []string{
		"abc def", "../../etc/passwd", "Ünïcødé name", "a b", "💥boom💥",
		"MiXeD Case 123", " - - ", "tabs\tand\nnewlines", "x/y/z", "",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Regexp(t, allowed, once, "input %q", in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)

		lower := SanitizeLower(in)
		assert.Equal(t, lower, SanitizeLower(lower), "input %q", in)
	}
}

func TestSanitizeLower(t *testing.T) {
	assert.Equal(t, "acme-corp", SanitizeLower("Acme Corp"))
}

func TestValidate(t *testing.T) {
	var vErr *ValidationError

	err := Validate("ab")
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "between 3 and 50")

	assert.NoError(t, Validate("abc"))
	assert.NoError(t, Validate("ABC-123"))

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	assert.NoError(t, Validate(string(long[:50])))
	assert.ErrorAs(t, Validate(string(long)), &vErr)

	err = Validate("abc def")
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "letters, numbers, and hyphens")

	assert.ErrorAs(t, Validate(""), &vErr)
}

type fakeChecker struct {
	exists bool
	err    error
	calls  int
}

func (f *fakeChecker) ClientExists(_ context.Context, _ string) (bool, error) {
	f.calls++
	return f.exists, f.err
}

func TestLifecycleNewClient(t *testing.T) {
	l := NewLifecycle()
	require.NoError(t, l.Submit("Acme Corp", true))
	assert.Equal(t, StateValidated, l.State)
	assert.Equal(t, "acme-corp", l.ClientID)

	require.NoError(t, l.Resolve(context.Background(), &fakeChecker{exists: false}))
	assert.Equal(t, StateNew, l.State)
	assert.False(t, l.Exists)

	require.NoError(t, l.Proceed())
	assert.True(t, l.Ready())

	// idempotent once Ready
	require.NoError(t, l.Proceed())
	assert.True(t, l.Ready())
}

func TestLifecycleExistingClientKeepsCase(t *testing.T) {
	l := NewLifecycle()
	require.NoError(t, l.Submit("Acme Corp", false))
	assert.Equal(t, "Acme-Corp", l.ClientID)

	require.NoError(t, l.Resolve(context.Background(), &fakeChecker{exists: true}))
	assert.Equal(t, StateExisting, l.State)
	require.NoError(t, l.Proceed())
	assert.Equal(t, StateReady, l.State)
}

func TestLifecycleInvalidInputRetainsNothing(t *testing.T) {
	l := NewLifecycle()
	err := l.Submit("ab", true)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, NewLifecycle(), l)

	require.NoError(t, l.Submit("abc", true))
}

func TestLifecycleRejectsOutOfOrderSteps(t *testing.T) {
	var vErr *ValidationError

	l := NewLifecycle()
	assert.ErrorAs(t, l.Proceed(), &vErr)
	assert.ErrorAs(t, l.Resolve(context.Background(), &fakeChecker{}), &vErr)

	require.NoError(t, l.Submit("abc", true))
	assert.ErrorAs(t, l.Submit("xyz", true), &vErr)
	assert.ErrorAs(t, l.Proceed(), &vErr)
}

func TestLifecycleProbeFailureStaysValidated(t *testing.T) {
	l := NewLifecycle()
	require.NoError(t, l.Submit("abc", true))

	checker := &fakeChecker{err: errors.New("provider down")}
	require.Error(t, l.Resolve(context.Background(), checker))
	assert.Equal(t, StateValidated, l.State)

	checker.err = nil
	require.NoError(t, l.Resolve(context.Background(), checker))
	assert.Equal(t, 2, checker.calls)
}

func TestLifecycleReset(t *testing.T) {
	l := NewLifecycle()
	require.NoError(t, l.Submit("abc", true))
	l.Reset()
	assert.Equal(t, StateUnvalidated, l.State)
	assert.Empty(t, l.ClientID)
}

func TestLifecycleReopen(t *testing.T) {
	l := NewLifecycle()
	require.NoError(t, l.Submit("abc", true))
	require.NoError(t, l.Resolve(context.Background(), &fakeChecker{exists: true}))
	require.NoError(t, l.Proceed())

	l.Reopen()
	assert.Equal(t, StateExisting, l.State)
	assert.Equal(t, "abc", l.ClientID)

	// no-op outside Ready
	l.Reopen()
	assert.Equal(t, StateExisting, l.State)
}
