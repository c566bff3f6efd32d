package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes every http message it receives to its own file under a directory.
// Files are named "<prefix>-<id>.txt" so that several clients can share a directory.
type FilesystemOutput struct {
	directory string
	prefix    string
}

func NewFilesystemOutput(dir, prefix string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, prefix: prefix}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	name := filepath.Join(o.directory, fmt.Sprintf("%s-%s.txt", o.prefix, id))
	err := os.WriteFile(name, []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
