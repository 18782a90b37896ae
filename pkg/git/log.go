package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Commit is one entry of the commit log.
type Commit struct {
	SHA         string
	Author      string
	AuthorEmail string
	Date        time.Time
	Message     string
	Additions   int
	Deletions   int
}

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
	bodyEnd   = "\x1d"
)

// logFormat frames each commit so bodies with arbitrary text parse cleanly.
// The numstat lines for a commit follow its bodyEnd marker.
var logFormat = "--format=" + recordSep + "%H" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%aI" + fieldSep + "%B" + bodyEnd

// Log returns up to limit commits reachable from HEAD, newest first.
func Log(ctx context.Context, dir string, limit int) ([]Commit, error) {
	if limit <= 0 {
		return nil, nil
	}
	out, err := run(ctx, dir, "log", "-n", strconv.Itoa(limit), "--numstat", logFormat)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

func parseLog(out string) ([]Commit, error) {
	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		if strings.TrimSpace(record) == "" {
			continue
		}

		header, stats, _ := strings.Cut(record, bodyEnd)
		fields := strings.SplitN(header, fieldSep, 5)
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed log record: %q", firstLine(record))
		}

		date, err := time.Parse(time.RFC3339, fields[3])
		if err != nil {
			return nil, fmt.Errorf("parsing date of %s: %w", fields[0], err)
		}

		c := Commit{
			SHA:         fields[0],
			Author:      fields[1],
			AuthorEmail: fields[2],
			Date:        date,
			Message:     strings.TrimSpace(fields[4]),
		}
		c.Additions, c.Deletions = sumNumstat(stats)
		commits = append(commits, c)
	}
	return commits, nil
}

// sumNumstat totals "added<TAB>deleted<TAB>path" lines. Binary files report
// "-" and count as zero.
func sumNumstat(stats string) (int, int) {
	var adds, dels int
	for _, line := range strings.Split(stats, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "\t", 3)
		if len(parts) != 3 {
			continue
		}
		if n, err := strconv.Atoi(parts[0]); err == nil {
			adds += n
		}
		if n, err := strconv.Atoi(parts[1]); err == nil {
			dels += n
		}
	}
	return adds, dels
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
