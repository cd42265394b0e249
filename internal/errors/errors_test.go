package errors_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	skimerrs "github.com/jdholdren/skimmer/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := skimerrs.E(
		"something went wrong",
		skimerrs.Detail{Field: "url", Error: "was bad"},
		http.StatusBadRequest,
	)
	want := &skimerrs.Error{
		Err: errors.New("something went wrong"),
		Details: []skimerrs.Detail{
			{Field: "url", Error: "was bad"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestEDefaultsToInternal(t *testing.T) {
	got := skimerrs.E(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, got.Status)
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("boom")
	assert.ErrorIs(t, skimerrs.E(underlying, http.StatusBadGateway), underlying)
}
