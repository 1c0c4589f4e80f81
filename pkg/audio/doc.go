// Package audio provides the decoded-audio type shared by the noisemap
// front end.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - decode: turns encoded bytes (WAV, MP3, anything ffmpeg reads) into a Waveform
//   - resampler: sample rate conversion for the native decode paths
//   - fbank: STFT, mel filterbank and cepstral transforms
//
// Example usage:
//
//	dec := decode.New(decode.Config{SampleRate: 22050, MaxDuration: 5 * time.Second})
//	wave, err := dec.Decode(ctx, data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(wave.Duration(), wave.Peak())
package audio
