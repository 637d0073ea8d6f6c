package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

func TestNewRejectsBadURLs(t *testing.T) {
	_, err := New(Config{SearcherURL: "localhost:8080", IngestionURL: "http://localhost:8081"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = New(Config{SearcherURL: "http://localhost:8080", IngestionURL: ""}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	h, err := New(Config{SearcherURL: "http://localhost:8080", IngestionURL: "http://localhost:8081"}, nil)
	assert.NoError(t, err)
	assert.Nil(t, h.analytics)
}
