package websocket

import "testing"

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		sessionID string
		want      string
		wantErr   bool
	}{
		{name: "ws base", base: "ws://localhost:8000", sessionID: "42", want: "ws://localhost:8000/ws/interview/42"},
		{name: "trailing slash", base: "ws://localhost:8000/", sessionID: "42", want: "ws://localhost:8000/ws/interview/42"},
		{name: "http maps to ws", base: "http://localhost:8000", sessionID: "7", want: "ws://localhost:8000/ws/interview/7"},
		{name: "https maps to wss", base: "https://api.example.com", sessionID: "7", want: "wss://api.example.com/ws/interview/7"},
		{name: "path prefix", base: "wss://example.com/backend", sessionID: "7", want: "wss://example.com/backend/ws/interview/7"},
		{name: "escaped id", base: "ws://h", sessionID: "a/b c", want: "ws://h/ws/interview/a%2Fb%20c"},
		{name: "empty id", base: "ws://h", sessionID: " ", wantErr: true},
		{name: "bad scheme", base: "ftp://h", sessionID: "1", wantErr: true},
		{name: "no host", base: "ws:///path", sessionID: "1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.base, tt.sessionID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
