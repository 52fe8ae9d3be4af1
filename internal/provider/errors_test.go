package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := NotFound(KindSecurityGroup, "sg-1")

	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("cleanup: %w", err)))
	assert.Contains(t, err.Error(), `security group "sg-1"`)
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.False(t, IsNotFound(nil))
}
