// Package artifact renders audit documents from completed wipe sessions:
// a bounded destruction certificate and an exhaustive plain-text log.
// Rendering is deterministic for a given session snapshot, so outputs are
// suitable for golden comparisons.
package artifact

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmcleod/pyre/session"
	"github.com/jmcleod/pyre/wipe"
)

const (
	certificateFileLimit  = 50
	certificateErrorLimit = 10
	timeLayout            = "2006-01-02 15:04:05 UTC"
)

// SystemInfo identifies the host that performed the destruction.
type SystemInfo struct {
	Hostname string
	OS       string
	Arch     string
	Runtime  string
}

// CollectSystemInfo gathers host details for certificate rendering.
func CollectSystemInfo() SystemInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return SystemInfo{
		Hostname: hostname,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Runtime:  runtime.Version(),
	}
}

// StandardLabel names the wipe standard for a requested pass count. A full
// seven-pass run matches the DoD 5220.22-M ECE schedule; anything else is
// reported as a custom pass count.
func StandardLabel(passes int) string {
	if wipe.EffectivePasses(passes) == 7 {
		return "DoD 5220.22-M"
	}
	return fmt.Sprintf("%d-Pass Custom", wipe.EffectivePasses(passes))
}

// Certificate renders the bounded audit certificate for a session snapshot.
// File details are capped at 50 lines and errors at 10, each followed by a
// "+N more" summary when truncated.
func Certificate(s session.Session, sys SystemInfo) []byte {
	var b strings.Builder

	rule := strings.Repeat("=", 64)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "              CERTIFICATE OF DATA DESTRUCTION")
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)

	writeField(&b, "Session ID", s.ID)
	writeField(&b, "Owner", s.Owner)
	writeField(&b, "Completed", s.EndTime.UTC().Format(timeLayout))
	writeField(&b, "Status", string(s.Status))
	writeField(&b, "Wipe Standard", StandardLabel(s.Settings.Passes))
	fmt.Fprintln(&b)

	writeField(&b, "Files Wiped", fmt.Sprintf("%d", s.FilesWiped))
	writeField(&b, "Directories Wiped", fmt.Sprintf("%d", s.DirectoriesWiped))
	writeField(&b, "Total Data Destroyed", humanize.IBytes(uint64(s.TotalSize)))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Target Paths:")
	for _, p := range s.Paths {
		fmt.Fprintf(&b, "  - %s\n", p.Relative)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "File Details (first %d):\n", certificateFileLimit)
	for i, f := range s.WipedFiles {
		if i == certificateFileLimit {
			break
		}
		fmt.Fprintf(&b, "  %s (%s, %d passes)\n", f.Path, humanize.IBytes(uint64(f.Size)), f.PassesCompleted)
	}
	if extra := len(s.WipedFiles) - certificateFileLimit; extra > 0 {
		fmt.Fprintf(&b, "  + %d more files\n", extra)
	}
	fmt.Fprintln(&b)

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "Errors (first %d):\n", certificateErrorLimit)
		for i, e := range s.Errors {
			if i == certificateErrorLimit {
				break
			}
			fmt.Fprintf(&b, "  %s: %s\n", e.Path, e.Message)
		}
		if extra := len(s.Errors) - certificateErrorLimit; extra > 0 {
			fmt.Fprintf(&b, "  + %d more errors\n", extra)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "System Information:")
	writeField(&b, "  Hostname", sys.Hostname)
	writeField(&b, "  Operating System", sys.OS)
	writeField(&b, "  Architecture", sys.Arch)
	writeField(&b, "  Runtime", sys.Runtime)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)

	return []byte(b.String())
}

// Log renders the exhaustive plain-text log for a session snapshot. Unlike
// the certificate, every file, directory, and error entry is listed.
func Log(s session.Session) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "WIPE SESSION LOG - %s\n\n", s.ID)

	fmt.Fprintln(&b, "Configuration:")
	writeField(&b, "  Passes Requested", fmt.Sprintf("%d", s.Settings.Passes))
	writeField(&b, "  Passes Effective", fmt.Sprintf("%d", wipe.EffectivePasses(s.Settings.Passes)))
	writeField(&b, "  Wipe Standard", StandardLabel(s.Settings.Passes))
	writeField(&b, "  Verify", fmt.Sprintf("%t", s.Settings.Verify))
	writeField(&b, "  Remove Empty Dirs", fmt.Sprintf("%t", s.Settings.RemoveEmptyDirs))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Run:")
	writeField(&b, "  Owner", s.Owner)
	writeField(&b, "  Status", string(s.Status))
	writeField(&b, "  Started", s.StartTime.UTC().Format(timeLayout))
	writeField(&b, "  Ended", s.EndTime.UTC().Format(timeLayout))
	writeField(&b, "  Duration", s.EndTime.Sub(s.StartTime).String())
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Statistics:")
	writeField(&b, "  Files Wiped", fmt.Sprintf("%d", s.FilesWiped))
	writeField(&b, "  Directories Wiped", fmt.Sprintf("%d", s.DirectoriesWiped))
	writeField(&b, "  Total Size (bytes)", fmt.Sprintf("%d", s.TotalSize))
	writeField(&b, "  Total Size", humanize.IBytes(uint64(s.TotalSize)))
	writeField(&b, "  Errors", fmt.Sprintf("%d", len(s.Errors)))
	writeField(&b, "  Progress", fmt.Sprintf("%d%%", s.Progress))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Target Paths:")
	for _, p := range s.Paths {
		fmt.Fprintf(&b, "  - %s (%s)\n", p.Relative, p.Full)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Files (%d):\n", len(s.WipedFiles))
	for _, f := range s.WipedFiles {
		fmt.Fprintf(&b, "  %s size=%d passes=%d\n", f.Path, f.Size, f.PassesCompleted)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Directories (%d):\n", len(s.WipedDirectories))
	for _, d := range s.WipedDirectories {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Errors (%d):\n", len(s.Errors))
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "  %s: %s\n", e.Path, e.Message)
	}

	return []byte(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%-22s %s\n", label+":", value)
}
