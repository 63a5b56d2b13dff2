package apperr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func AssertKind(t *testing.T, err error, kind Kind, msgAndArgs ...interface{}) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	return assert.Equal(t, kind.String(), KindOf(err).String(), msgAndArgs...)
}
