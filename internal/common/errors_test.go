package common

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("matching", "weights", "must sum to 1")
	wrapped := fmt.Errorf("load config: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInvalidConfig))
	assert.False(t, errors.Is(wrapped, ErrMissingConfig))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(wrapped, &cfgErr))
	assert.Equal(t, "weights", cfgErr.Field)
	assert.Equal(t, "invalid configuration matching.weights: must sum to 1", err.Error())

	noField := NewConfigurationError("owners.columns", "", "role is not mapped")
	assert.Equal(t, "invalid configuration in owners.columns: role is not mapped", noField.Error())
}

func TestRowParseError(t *testing.T) {
	cause := errors.New("strconv.ParseFloat: invalid syntax")
	err := &RowParseError{RecordSet: "owners", Row: 7, Field: "area", Value: "12a", Reason: "unparsable_number", Err: cause}

	assert.True(t, errors.Is(err, ErrRowParse))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), `owners row 7: area "12a"`)
}

func TestUserError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewUserError("could not write outputs", cause)

	assert.Equal(t, "could not write outputs: disk full", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "plain", NewUserError("plain", nil).Error())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "", want: slog.LevelInfo},
		{name: "warning", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.Info("visible", "block", "marina heights")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"block":"marina heights"`)
}

func TestFieldAttrsOrdered(t *testing.T) {
	attrs := fieldAttrs(Fields{"b": 2, "a": 1, "c": 3})
	require.Len(t, attrs, 3)
	assert.Equal(t, "a", attrs[0].Key)
	assert.Equal(t, "b", attrs[1].Key)
	assert.Equal(t, "c", attrs[2].Key)
}
