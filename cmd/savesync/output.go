package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// printResult renders v either as a single JSON line (--json) or by handing
// it to human, which formats it for a terminal.
func printResult(v any, human func()) error {
	if flagJSON {
		return printJSONLine(v)
	}

	human()

	return nil
}

func printJSONLine(v any) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}

// humanSize renders byte counts the way a user reads them, consistent with
// the daemon's own log lines.
func humanSize(n int64) string {
	return humanize.Bytes(uint64(n))
}

// humanTime renders a unix-epoch-seconds timestamp as a relative time.
func humanTime(unixSeconds uint64) string {
	return humanize.Time(unixToTime(unixSeconds))
}

func unixToTime(unixSeconds uint64) time.Time {
	return time.Unix(int64(unixSeconds), 0) //nolint:gosec // timestamps are always in-range
}

func errorLine(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
