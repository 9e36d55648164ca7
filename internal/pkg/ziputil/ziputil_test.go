package ziputil

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestBuildKeepsOrderAndContent(t *testing.T) {
	data, err := Build([]File{
		{Name: "app.py", Body: []byte("print(1)\n")},
		{Name: "README.md", Body: []byte("# x\n")},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "app.py" || zr.File[1].Name != "README.md" {
		t.Fatalf("unexpected entries: %v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "print(1)\n" {
		t.Fatalf("unexpected body %q", body)
	}
}
