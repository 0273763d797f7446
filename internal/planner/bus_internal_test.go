package planner

import "testing"

func TestDecodeUpdate(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantErr     bool
		wantSession string
		wantVersion int64
	}{
		{"valid", `{"session_id":"s1","version":3,"estimate":{"total_hours":2}}`, false, "s1", 3},
		{"closed", `{"session_id":"s1","version":4,"closed":true}`, false, "s1", 4},
		{"malformed", `not json`, true, "", 0},
		{"wrong shape", `["s1"]`, true, "", 0},
		{"empty session", `{"version":1}`, true, "", 0},
		{"empty payload", ``, true, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeUpdate(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.SessionID != tt.wantSession || got.Version != tt.wantVersion {
				t.Errorf("decodeUpdate() = %q/%d, want %q/%d", got.SessionID, got.Version, tt.wantSession, tt.wantVersion)
			}
		})
	}
}
