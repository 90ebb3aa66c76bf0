package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/blobstore"
	"codedrop/internal/config"
)

type savedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size_bytes"`
	Checksum string `json:"checksum,omitempty"`
}

func newGetCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var (
		code string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "get [<id>...]",
		Short: "Download files by id, or every file under --code",
		Args:  requireIDsOrCode(&code),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				ctx := cmd.Context()
				ids := args
				if strings.TrimSpace(code) != "" {
					list, err := client.ListFiles(ctx, code)
					if err != nil {
						return err
					}
					ids = make([]string, 0, len(list.Files))
					for _, file := range list.Files {
						ids = append(ids, file.ID)
					}
				}

				saved := make([]savedFile, 0, len(ids))
				names := nameSet{}
				for _, id := range ids {
					file, err := downloadFile(ctx, client, id, dir, names)
					if err != nil {
						return fmt.Errorf("download %s: %w", id, err)
					}
					saved = append(saved, file)
					if !*structured {
						if err := writePlain("%s -> %s\n", file.Filename, file.Path); err != nil {
							return err
						}
					}
				}

				if *structured {
					return writeJSON(saved)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "download every file under this code")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to save files into")
	return cmd
}

// downloadFile streams one file into dir through a temp file and verifies
// the digest the server reported before renaming it into place. Names already
// written in this run get a numeric suffix.
func downloadFile(ctx context.Context, client *api.Client, id, dir string, names nameSet) (savedFile, error) {
	dl, err := client.Download(ctx, id)
	if err != nil {
		return savedFile{}, err
	}
	defer dl.Body.Close()

	name := filepath.Base(dl.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = id
	}

	tmp, err := os.CreateTemp(dir, ".codedrop-*")
	if err != nil {
		return savedFile{}, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	counter := &countingWriter{w: tmp}
	sum, err := blobstore.Checksum(io.TeeReader(dl.Body, counter))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return savedFile{}, err
	}
	if dl.Length >= 0 && counter.n != dl.Length {
		return savedFile{}, fmt.Errorf("short download: got %d of %d bytes", counter.n, dl.Length)
	}
	if dl.Checksum != "" && dl.Checksum != sum {
		return savedFile{}, fmt.Errorf("checksum mismatch: server reported %s, received %s", dl.Checksum, sum)
	}

	name = names.claim(name)
	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dest); err != nil {
		return savedFile{}, err
	}
	return savedFile{ID: id, Filename: name, Path: dest, Size: counter.n, Checksum: sum}, nil
}

// nameSet tracks filenames saved during one get invocation.
type nameSet map[string]struct{}

// claim returns name, or "base (N).ext" for the first N not yet claimed.
func (s nameSet) claim(name string) string {
	if _, ok := s[name]; !ok {
		s[name] = struct{}{}
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, ok := s[candidate]; !ok {
			s[candidate] = struct{}{}
			return candidate
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
