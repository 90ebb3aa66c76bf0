package main

import (
	"context"
	"errors"
	"net"

	"codedrop/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "too_large":
			lines = append(lines, "hint: a single file may be up to 8 MiB and a batch up to 20 MiB by default; run `codedrop info` for the server limits.")
		case "not_found":
			lines = append(lines, "hint: files expire a few hours after upload; check the code or ask the sender to upload again.")
		case "conflict":
			lines = append(lines, "hint: the code is busy; reserve a fresh one by omitting --code.")
		}
		if apiErr.Retryable() {
			lines = append(lines, "hint: the server is busy; retry shortly.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify CODEDROP_API_URL points to a codedrop server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase CODEDROP_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a codedrop server is running at CODEDROP_API_URL.",
			"hint: start a local server manually with: codedrop srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
