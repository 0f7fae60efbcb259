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

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	notFound := WrapRedis(redis.Nil)
	require.Error(t, notFound)
	assert.True(t, errors.Is(notFound, redis.Nil))
	assert.Equal(t, http.StatusNotFound, StatusOf(notFound))

	boom := errors.New("connection refused")
	wrapped := WrapRedis(boom)
	assert.True(t, errors.Is(wrapped, boom))
	assert.Equal(t, http.StatusBadGateway, StatusOf(wrapped))
	assert.Equal(t, RedisErrorMessage+": connection refused", wrapped.Error())
}

func TestAppErrorAs(t *testing.T) {
	err := fmt.Errorf("answer stage: %w", WrapLLM(errors.New("quota exceeded")))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, LLMErrorMessage, appErr.Message)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}

func TestStatusOfPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(New(nil, 0, "no status")))
}

func TestAppErrorMessageWithoutCause(t *testing.T) {
	assert.Equal(t, SQLiteErrorMessage, New(nil, http.StatusBadGateway, SQLiteErrorMessage).Error())
	assert.NoError(t, WrapSQLite(nil))
	assert.NoError(t, WrapLLM(nil))
}
