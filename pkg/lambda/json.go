package lambda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/haivivi/noisemap/pkg/jsontime"
)

// jsonRequest is the body sent by field devices after uploading a clip.
type jsonRequest struct {
	MP3Key    string          `json:"mp3_key"`
	AudioKey  string          `json:"audio_key"`
	DeviceID  string          `json:"device_id"`
	Lat       flexFloat       `json:"gps_lat"`
	Lng       flexFloat       `json:"gps_long"`
	Timestamp jsontime.Device `json:"timestamp"`
}

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s", data)
	}
	f.Value, f.Set = v, true
	return nil
}
