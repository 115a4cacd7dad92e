package backup

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// LogName is the append-only backup log inside the backup root, one
// "timestamp - event: detail" line per entry.
const LogName = "backup.log"

const logTimeLayout = "2006-01-02 15:04:05"

// AppendLog adds one event line to the backup log.
func AppendLog(backupRoot string, t time.Time, event, detail string) error {
	f, err := os.OpenFile(filepath.Join(backupRoot, LogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s - %s: %s\n", t.UTC().Format(logTimeLayout), event, detail)
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TrimLog drops log lines older than cutoff, rewriting the log atomically.
// Lines whose timestamp cannot be parsed are kept.
func TrimLog(backupRoot string, cutoff time.Time) error {
	path := filepath.Join(backupRoot, LogName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		ts, _, found := strings.Cut(line, " - ")
		if found {
			if t, err := time.Parse(logTimeLayout, ts); err == nil && t.Before(cutoff) {
				continue
			}
		}
		kept = append(kept, line)
	}
	var buf bytes.Buffer
	for _, line := range kept {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return atomic.WriteFile(path, &buf)
}
