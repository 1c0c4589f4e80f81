package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDevice_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`1718000000`, time.Unix(1718000000, 0).UTC()},
		{`"1718000000"`, time.Unix(1718000000, 0).UTC()},
		{`1718000000.5`, time.Unix(1718000000, 5e8).UTC()},
		{`1718000000123`, time.UnixMilli(1718000000123).UTC()},
		{`"2026-10-18T09:30:00+02:00"`, time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC)},
		{`"2026-10-18 09:30:00"`, time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var d Device
		if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if !d.Time().Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.in, d.Time(), tt.want)
		}
	}
}

func TestDevice_UnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"yesterday"`, `true`, `"18/10/2026"`} {
		var d Device
		if err := json.Unmarshal([]byte(in), &d); err == nil {
			t.Errorf("%s accepted as %v", in, d.Time())
		}
	}
}

func TestDevice_MarshalJSON(t *testing.T) {
	tm := time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	data, err := json.Marshal(Device(tm))
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}
	if string(data) != `"2026-10-18T07:30:00Z"` {
		t.Errorf("MarshalJSON = %s", data)
	}

	data, err = json.Marshal(Device{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Errorf("zero MarshalJSON = %s, want null", data)
	}
}

func TestDevice_InStruct(t *testing.T) {
	type payload struct {
		Timestamp Device `json:"timestamp"`
	}
	var p payload
	if err := json.Unmarshal([]byte(`{"timestamp": "2026-10-18 09:30:00"}`), &p); err != nil {
		t.Fatal(err)
	}
	if got := p.Timestamp.Time(); got.Hour() != 9 || got.Location() != time.UTC {
		t.Errorf("Timestamp = %v", got)
	}
}
