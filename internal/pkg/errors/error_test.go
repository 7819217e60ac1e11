package xerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(ErrNotFound, "load subscription")
	assert.True(t, Is(err, ErrNotFound))
	assert.Equal(t, "load subscription: resource not found", err.Error())
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestPublic(t *testing.T) {
	assert.Equal(t, "", Public(nil))
	assert.Equal(t, ErrDuplicateEntry.Error(), Public(fmt.Errorf("users hash: %w", ErrDuplicateEntry)))
	assert.Equal(t, ErrInternal.Error(), Public(errors.New("dial tcp 10.0.0.5:6379: connection refused")))
}
