package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

const cancelTimeout = 10 * time.Second

type sendFile struct {
	path string
	name string
	size int64
}

func newSendCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "send <file>...",
		Short: "Upload files and print the code that fetches them",
		Args:  requireAtLeastArgs(1, "at least one file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := statSendFiles(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withClient(cfg, func(client *api.Client) error {
				info, err := client.GetInfo(ctx)
				if err != nil {
					return err
				}
				if err := checkSendLimits(files, info); err != nil {
					return err
				}

				if strings.TrimSpace(code) == "" {
					reserved, err := client.ReserveCode(ctx)
					if err != nil {
						return err
					}
					code = reserved.UniqueCode
				}

				resp, err := uploadSendFiles(ctx, client, code, files)
				if err != nil {
					if ctx.Err() != nil {
						return cancelSend(client, code, err)
					}
					return err
				}

				if *structured {
					return writeJSON(resp)
				}
				if err := writePlain("code: %s\n", resp.UniqueCode); err != nil {
					return err
				}
				return writeFileList(resp.Files)
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "upload under an already reserved code")
	return cmd
}

func statSendFiles(paths []string) ([]sendFile, error) {
	files := make([]sendFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		files = append(files, sendFile{path: path, name: filepath.Base(path), size: info.Size()})
	}
	return files, nil
}

// checkSendLimits rejects a batch the server would refuse before any byte is sent.
func checkSendLimits(files []sendFile, info api.InfoResponse) error {
	if len(files) == 1 && info.MaxFileBytes > 0 && files[0].size > info.MaxFileBytes {
		return fmt.Errorf("%s is %s; a single file may be at most %s",
			files[0].name, humanize.IBytes(uint64(files[0].size)), humanize.IBytes(uint64(info.MaxFileBytes)))
	}

	var total int64
	for _, file := range files {
		total += file.size
	}
	if info.MaxBatchBytes > 0 && total > info.MaxBatchBytes {
		return fmt.Errorf("batch is %s; at most %s may be sent at once",
			humanize.IBytes(uint64(total)), humanize.IBytes(uint64(info.MaxBatchBytes)))
	}
	return nil
}

func uploadSendFiles(ctx context.Context, client *api.Client, code string, files []sendFile) (api.UploadResponse, error) {
	parts := make([]api.UploadPart, 0, len(files))
	for _, file := range files {
		f, err := os.Open(file.path)
		if err != nil {
			return api.UploadResponse{}, err
		}
		defer f.Close()
		parts = append(parts, api.UploadPart{Filename: file.name, Content: f})
	}
	return client.UploadFiles(ctx, code, parts)
}

// cancelSend removes whatever reached the server before the interrupt.
func cancelSend(client *api.Client, code string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	resp, err := client.DeleteByCode(ctx, code)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return fmt.Errorf("upload cancelled: %w", cause)
		}
		return fmt.Errorf("upload cancelled, cleanup of code %s failed: %w", code, err)
	}
	return fmt.Errorf("upload cancelled, removed %d partial file(s) under code %s", resp.Deleted, code)
}
