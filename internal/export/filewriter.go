package export

import (
	"os"
	"path/filepath"
)

// FileWriter writes to a temp file and later atomically renames it.
// If a write error occurs, it is saved internally and future writes become no-ops.
type FileWriter struct {
	p    string   // target filename
	f    *os.File // temp file
	werr error    // first error encountered while writing
}

// NewFileWriter returns a FileWriter for p, creating its directory if needed.
func NewFileWriter(p string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*")
	if err != nil {
		return nil, err
	}
	return &FileWriter{p: p, f: f}, nil
}

func (fw *FileWriter) Write(b []byte) (int, error) {
	if fw.werr != nil {
		return 0, fw.werr
	}
	n, err := fw.f.Write(b)
	fw.werr = err
	return n, err
}

// Close renames the temp file to the path originally supplied to NewFileWriter.
// If a write error occurred earlier, it is returned and no other action is taken.
func (fw *FileWriter) Close() error {
	defer os.Remove(fw.f.Name()) // no-op on success
	cerr := fw.f.Close()
	if fw.werr != nil {
		return fw.werr
	}
	if cerr != nil {
		return cerr
	}
	if err := os.Chmod(fw.f.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(fw.f.Name(), fw.p)
}

// Abort discards the temp file.
func (fw *FileWriter) Abort() {
	fw.f.Close()
	os.Remove(fw.f.Name())
}

// WriteFile writes via fn into p atomically.
func WriteFile(p string, fn func(fw *FileWriter) error) error {
	fw, err := NewFileWriter(p)
	if err != nil {
		return err
	}
	if err := fn(fw); err != nil {
		fw.Abort()
		return err
	}
	return fw.Close()
}
