package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsNotFoundError(ErrTaskRequestNotFound))
	assert.True(t, IsNotFoundError(ErrTaskResultNotFound))
	assert.True(t, IsNotFoundError(fmt.Errorf("loading task: %w", ErrTaskResultNotFound)))

	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(ErrQueueEmpty))
	assert.False(t, IsNotFoundError(errors.New("some other error")))
}
