package diagnostics

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"vfi-client/internal/domain"
)

// DialTimeout bounds the reachability probe.
const DialTimeout = 3 * time.Second

// Checker validates the configured server and local output paths.
type Checker struct {
	dial       func(network, address string, timeout time.Duration) (net.Conn, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real network and OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		dial:       net.DialTimeout,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	hostItem, address := c.checkServerHost(settings.ServerHost, settings.Secure)
	return domain.NewDiagnosticReport(
		hostItem,
		c.checkReachable(address),
		c.checkOutputDir(settings.OutputDir, settings.SaveFrames),
	)
}

// checkServerHost validates host[:port] and returns the dial address.
func (c *Checker) checkServerHost(host string, secure bool) (domain.DiagnosticItem, string) {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticServerHost,
		Name: "Server host",
	}

	host = strings.TrimSpace(host)
	if host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Server host is empty."
		item.Hint = "Set serverHost in settings or VFI_SERVER_HOST."
		return item, ""
	}
	if strings.Contains(host, "/") {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Server host must be host[:port], got %s", host)
		item.Hint = "Drop the scheme and any path; the client picks ws or wss from the secure flag."
		return item, ""
	}

	address := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		port := "80"
		if secure {
			port = "443"
		}
		address = net.JoinHostPort(host, port)
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", address)
	return item, address
}

// checkReachable opens and closes one TCP connection to the server.
func (c *Checker) checkReachable(address string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticServerReachable,
		Name: "Server reachable",
	}

	if address == "" {
		item.Status = domain.DiagnosticStatusSkip
		item.Message = "No valid server host to dial."
		return item
	}

	started := time.Now()
	conn, err := c.dial("tcp", address, DialTimeout)
	item.Elapsed = time.Since(started)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot connect to %s", address)
		item.Hint = "Check that the interpolation server is running and the port is open."
		return item
	}
	_ = conn.Close()

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Connected to %s in %s", address, item.Elapsed.Round(time.Millisecond))
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string, required bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		if !required {
			item.Status = domain.DiagnosticStatusPass
			item.Message = "Frame saving is off."
			return item
		}
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where frames can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for frame export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	dial func(network, address string, timeout time.Duration) (net.Conn, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		dial:       dial,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
