package mqtt311

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWillValidate(t *testing.T) {
	tests := []struct {
		name    string
		will    *Will
		wantErr error
	}{
		{
			name: "nil will",
			will: nil,
		},
		{
			name: "valid",
			will: &Will{Topic: "devices/x/status", Payload: []byte("offline"), QoS: QoS1},
		},
		{
			name:    "empty topic",
			will:    &Will{},
			wantErr: ErrInvalidWill,
		},
		{
			name:    "wildcard topic",
			will:    &Will{Topic: "devices/#"},
			wantErr: ErrInvalidWill,
		},
		{
			name:    "qos2",
			will:    &Will{Topic: "t", QoS: QoS2},
			wantErr: ErrQoS2NotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.will.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
