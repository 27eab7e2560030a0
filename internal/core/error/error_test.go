package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCause = errors.New("cause")

func TestAppError_UnwrapAndIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", TooManyRequests(errCause, "quota exhausted"))

	assert.ErrorIs(t, err, errCause)

	var ae *AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusTooManyRequests, ae.Status)
	assert.Equal(t, CodeUpstreamQuota, ae.Code)
	assert.Equal(t, "quota exhausted: cause", ae.Error())
}

func TestAppError_WithCode(t *testing.T) {
	err := Internal(errCause, "").WithCode(CodeInvalidModelOutput)

	assert.Equal(t, CodeInvalidModelOutput, err.Code)
	assert.Equal(t, SystemErrorMessage, err.Message)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(BadRequest(nil, "bad")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errCause))
	assert.Equal(t, "bad", BadRequest(nil, "bad").Error())
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))
	assert.Equal(t, http.StatusNotFound, StatusOf(WrapRedis(redis.Nil)))

	err := WrapRedis(errCause)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.ErrorIs(t, err, errCause)
}
