package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"codedrop/internal/api"
	"codedrop/internal/format"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	stdout          io.Writer        = os.Stdout
)

func writeJSON(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

// writeFileList prints one aligned row per file.
func writeFileList(files []api.FileResponse) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, file := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			file.ID,
			humanize.IBytes(uint64(file.SizeBytes)),
			humanize.Time(file.UploadDate),
			file.Filename,
		)
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
