package api

// Health is the body of the health route of both transports.
type Health struct {
	Status string   `json:"status"`
	Recipe string   `json:"recipe"`
	Labels []string `json:"labels"`
	// FFmpeg reports whether containers other than WAV and MP3 can be
	// decoded. Toolchain carries the reason when they cannot.
	FFmpeg    bool   `json:"ffmpeg"`
	Toolchain string `json:"toolchain,omitempty"`
}

// Health describes the loaded service and checks the external decoder.
func (p *Predictor) Health() Health {
	h := Health{
		Status: "ok",
		Recipe: p.Service.Recipe().Fingerprint(),
		Labels: p.Service.Labels(),
		FFmpeg: true,
	}
	if err := p.Service.CheckToolchain(); err != nil {
		h.FFmpeg = false
		h.Toolchain = err.Error()
	}
	return h
}
