package mqtt311

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr error
	}{
		{"sensors/temp", nil},
		{"a", nil},
		{"/leading/slash", nil},
		{"", ErrEmptyTopic},
		{"sensors/+/temp", ErrInvalidTopicName},
		{"sensors/#", ErrInvalidTopicName},
		{"bad\x00topic", ErrInvalidTopicName},
	}

	for _, tt := range tests {
		err := ValidateTopicName(tt.topic)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "topic %q", tt.topic)
		} else {
			assert.NoError(t, err, "topic %q", tt.topic)
		}
	}
}

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr error
	}{
		{"sensors/temp", nil},
		{"sensors/+/temp", nil},
		{"sensors/#", nil},
		{"#", nil},
		{"+", nil},
		{"", ErrEmptyTopic},
		{"sensors/te+mp", ErrInvalidTopicFilter},
		{"sensors/#/temp", ErrInvalidTopicFilter},
		{"sensors/te#", ErrInvalidTopicFilter},
	}

	for _, tt := range tests {
		err := ValidateTopicFilter(tt.filter)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "filter %q", tt.filter)
		} else {
			assert.NoError(t, err, "filter %q", tt.filter)
		}
	}
}

func TestTopicMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"sensors/temp", "sensors/temp", true},
		{"sensors/temp", "sensors/humidity", false},
		{"sensors/+", "sensors/temp", true},
		{"sensors/+", "sensors/temp/celsius", false},
		{"sensors/#", "sensors/temp/celsius", true},
		{"#", "anything/at/all", true},
		{"+/+", "a/b", true},
		{"+/+", "a", false},
		{"#", "$SYS/broker/load", false},
		{"$SYS/#", "$SYS/broker/load", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicMatch(tt.filter, tt.topic),
			"filter %q topic %q", tt.filter, tt.topic)
	}
}

func TestIsSystemTopic(t *testing.T) {
	assert.True(t, IsSystemTopic("$SYS/broker/load"))
	assert.True(t, IsSystemTopic("$SYS"))
	assert.False(t, IsSystemTopic("sensors/temp"))
}

func TestContainsWildcard(t *testing.T) {
	assert.True(t, containsWildcard("a/#"))
	assert.True(t, containsWildcard("a/+/b"))
	assert.False(t, containsWildcard("a/b"))
}
