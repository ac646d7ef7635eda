// Package doctor checks the environment a review engine would run in
// and reports findings without changing anything.
package doctor

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patchgate-project/patchgate/internal/editor"
	"github.com/patchgate-project/patchgate/internal/lock"
	"github.com/patchgate-project/patchgate/pkg/config"
	"github.com/patchgate-project/patchgate/pkg/model"
)

// Finding represents one detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results. Healthy is false once any
// finding reaches severity error or critical.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "error" || f.Severity == "critical" {
		r.Healthy = false
	}
}

// Doctor performs environment health checks for one workspace.
type Doctor struct {
	root string
}

// NewDoctor creates a doctor for the workspace root.
func NewDoctor(root string) *Doctor {
	return &Doctor{root: root}
}

// Check runs all diagnostic checks.
func (d *Doctor) Check() (*Result, error) {
	result := &Result{Healthy: true}

	cfg := d.checkConfig(result)
	backupDir := cfg.ResolvedBackupDir()

	d.checkBackupDir(result, backupDir)
	d.checkBackupDirWritable(result, backupDir)
	d.checkLease(result, backupDir)
	d.checkWebhook(result, cfg)
	d.checkNvim(result, cfg)

	return result, nil
}

// checkConfig parses the workspace config, falling back to defaults so
// the remaining checks still run against something.
func (d *Doctor) checkConfig(result *Result) *config.Config {
	cfg, err := config.Load(d.root)
	if err != nil {
		result.add(Finding{
			Category:    "config",
			Description: fmt.Sprintf("cannot parse %s: %v", config.FileName, err),
			Severity:    "critical",
			Path:        filepath.Join(d.root, config.FileName),
		})
		return config.Default()
	}
	return cfg
}

func (d *Doctor) checkBackupDir(result *Result, dir string) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Created lazily on first backup; only warn if the parent
			// refuses a create.
			if err := os.MkdirAll(dir, 0755); err != nil {
				result.add(Finding{
					Category:    "backup",
					Description: fmt.Sprintf("backup directory cannot be created: %v", err),
					Severity:    "error",
					Path:        dir,
				})
				return
			}
			os.Remove(dir)
			return
		}
		result.add(Finding{
			Category:    "backup",
			Description: fmt.Sprintf("cannot stat backup directory: %v", err),
			Severity:    "error",
			Path:        dir,
		})
		return
	}
	if !info.IsDir() {
		result.add(Finding{
			Category:    "backup",
			Description: "backup path exists but is not a directory",
			Severity:    "critical",
			Path:        dir,
		})
	}
}

// checkBackupDirWritable probes with a real write and removes the
// probe afterwards.
func (d *Doctor) checkBackupDirWritable(result *Result, dir string) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	probe := filepath.Join(dir, fmt.Sprintf(".doctor-probe-%d", time.Now().UnixNano()))
	if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
		result.add(Finding{
			Category:    "backup",
			Description: fmt.Sprintf("backup directory is not writable: %v", err),
			Severity:    "error",
			Path:        dir,
		})
		return
	}
	os.Remove(probe)
}

func (d *Doctor) checkLease(result *Result, dir string) {
	state, rec, err := lock.NewManager(dir, 0).Status()
	if err != nil {
		result.add(Finding{
			Category:    "lease",
			Description: fmt.Sprintf("cannot read backup-dir lease: %v", err),
			Severity:    "warning",
			Path:        dir,
		})
		return
	}
	switch state {
	case model.LeaseStateHeld:
		result.add(Finding{
			Category:    "lease",
			Description: fmt.Sprintf("backup directory is leased (%s)", rec.Purpose),
			Severity:    "warning",
			Path:        dir,
		})
	case model.LeaseStateExpired:
		result.add(Finding{
			Category:    "lease",
			Description: "stale backup-dir lease left behind; the next prune will steal it",
			Severity:    "warning",
			Path:        dir,
		})
	}
}

func (d *Doctor) checkWebhook(result *Result, cfg *config.Config) {
	raw := cfg.Notify.WebhookURL
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		result.add(Finding{
			Category:    "notify",
			Description: fmt.Sprintf("webhook_url %q is not a valid http(s) URL", raw),
			Severity:    "error",
		})
		return
	}
	if cfg.Notify.WebhookSecret == "" {
		result.add(Finding{
			Category:    "notify",
			Description: "webhook_url set without webhook_secret; deliveries will be unsigned",
			Severity:    "warning",
		})
	}
}

func (d *Doctor) checkNvim(result *Result, cfg *config.Config) {
	address := cfg.Editor.NvimAddress
	if address == "" {
		address = os.Getenv(editor.ListenAddressEnv)
	}
	if address == "" {
		return
	}
	network := "unix"
	if strings.Contains(address, ":") && !strings.HasPrefix(address, "/") {
		network = "tcp"
	}
	conn, err := net.DialTimeout(network, address, time.Second)
	if err != nil {
		result.add(Finding{
			Category:    "editor",
			Description: fmt.Sprintf("neovim address %s not reachable: %v", address, err),
			Severity:    "warning",
			Path:        address,
		})
		return
	}
	conn.Close()
}
