package train

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Extensions lists the file extensions eligible for training. WAV and MP3
// decode natively; the rest go through ffmpeg.
var Extensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// Entry is one labelled corpus file.
type Entry struct {
	Class string `json:"class"`
	Path  string `json:"path"`
}

// ScanCorpus lists <class>/<file> entries of fsys in lexical order. Hidden
// names and files with ineligible extensions are ignored.
func ScanCorpus(fsys fs.FS) ([]Entry, error) {
	classes, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("train: read corpus root: %w", err)
	}
	var entries []Entry
	for _, c := range classes {
		if !c.IsDir() || hidden(c.Name()) {
			continue
		}
		files, err := fs.ReadDir(fsys, c.Name())
		if err != nil {
			return nil, fmt.Errorf("train: read class %s: %w", c.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || hidden(f.Name()) {
				continue
			}
			if !Extensions[strings.ToLower(path.Ext(f.Name()))] {
				continue
			}
			entries = append(entries, Entry{Class: c.Name(), Path: path.Join(c.Name(), f.Name())})
		}
	}
	return entries, nil
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") }
