package store

import "testing"

func TestMarshalDetail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "{}"},
		{"sorted keys", `{"b":1,"a":2}`, `{"a":2,"b":1}`},
		{"whitespace removed", "{ \"a\" : [1, 2] }", `{"a":[1,2]}`},
		{"no html escaping", `{"op":"<a&b>"}`, `{"op":"<a&b>"}`},
		{"integral floats", `{"n":2.0}`, `{"n":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalDetail([]byte(tt.in))
			if err != nil {
				t.Fatalf("marshalDetail() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("marshalDetail(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarshalDetail_Invalid(t *testing.T) {
	if _, err := marshalDetail([]byte("{")); err == nil {
		t.Error("marshalDetail() should reject invalid JSON")
	}
}

func TestSnapshotMode(t *testing.T) {
	if got := snapshotMode([]byte(`{"mode":"TEST","tag":"x"}`)); got != "TEST" {
		t.Errorf("snapshotMode() = %q, want TEST", got)
	}
	if got := snapshotMode([]byte("opaque")); got != "" {
		t.Errorf("snapshotMode() on non-JSON = %q, want empty", got)
	}
}
