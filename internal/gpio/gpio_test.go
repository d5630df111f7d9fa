package gpio

import "testing"

func TestParseBias(t *testing.T) {
	tests := []struct {
		in      string
		want    Bias
		wantErr bool
	}{
		{"", BiasAsIs, false},
		{"as-is", BiasAsIs, false},
		{"pull-up", BiasPullUp, false},
		{"pull-down", BiasPullDown, false},
		{"disabled", BiasDisabled, false},
		{"up", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBias(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
