package ziputil

import (
	"archive/zip"
	"bytes"
	"fmt"
)

type File struct {
	Name string
	Body []byte
}

// Build writes files into an in-memory zip archive in the given order.
func Build(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s failed: %w", f.Name, err)
		}
		if _, err := w.Write(f.Body); err != nil {
			return nil, fmt.Errorf("write zip entry %s failed: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip failed: %w", err)
	}
	return buf.Bytes(), nil
}
