package graph

import "testing"

func TestMarshalProps(t *testing.T) {
	// nil props must become an empty JSONB object, not SQL NULL.
	data, err := marshalProps(nil)
	if err != nil {
		t.Fatalf("marshalProps(nil): %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("marshalProps(nil) = %s, want {}", data)
	}

	data, err = marshalProps(map[string]any{"status": "RUNNING"})
	if err != nil {
		t.Fatalf("marshalProps: %v", err)
	}
	if string(data) != `{"status":"RUNNING"}` {
		t.Errorf("marshalProps = %s", data)
	}

	if _, err := marshalProps(map[string]any{"bad": make(chan int)}); err == nil {
		t.Error("unencodable props must be rejected")
	}
}
