package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey(""))
	assert.Equal(t, "****", maskAPIKey("12345678"))
	assert.Equal(t, "AIza****wxyz", maskAPIKey("AIzaSyD-abcdefwxyz"))
}
