package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_DayWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		window  DayWindow
		wantErr bool
	}{
		{name: "two weeks", window: DayWindow{Start: 0, End: 14}},
		{name: "last allowed day", window: DayWindow{Start: 59, End: MaxWindowEnd}},
		{name: "empty", window: DayWindow{Start: 3, End: 3}, wantErr: true},
		{name: "inverted", window: DayWindow{Start: 5, End: 2}, wantErr: true},
		{name: "negative start", window: DayWindow{Start: -1, End: 2}, wantErr: true},
		{name: "past the limit", window: DayWindow{Start: 0, End: MaxWindowEnd + 1}, wantErr: true},
		{name: "huge", window: DayWindow{Start: 0, End: 2_000_000_000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidWindow)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tt.window.Days(), tt.window.End-tt.window.Start)
		})
	}
}
