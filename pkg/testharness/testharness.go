package testharness

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"
)

const binaryName = "authclient-testserver"

// Config holds configuration for starting the test harness.
type Config struct {
	IssuerDomain   string
	AccessLifetime time.Duration
	Users          []User
	ListenAddr     string
	BinaryPath     string
	Quiet          bool
}

// User holds test user credentials.
type User struct {
	Email    string
	Password string
}

// Stats mirrors the counters served by the control endpoint.
type Stats struct {
	RefreshCalls     int `json:"refreshCalls"`
	ExpiredResponses int `json:"expiredResponses"`
	Requests         int `json:"requests"`
}

// Harness represents a running authclient-testserver instance.
type Harness struct {
	BaseURL            string
	ControlURL         string
	IssuerDomain       string
	AccessLifetime     time.Duration
	VerificationKeyDER []byte
	Users              []User

	// Internal state
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// outputContract matches the JSON structure from authclient-testserver
type outputContract struct {
	BaseURL        string       `json:"base_url"`
	ControlURL     string       `json:"control_url"`
	IssuerDomain   string       `json:"issuer_domain"`
	AccessLifetime string       `json:"access_lifetime"`
	Users          []outputUser `json:"users"`
	Keys           outputKeys   `json:"keys"`
}

type outputUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type outputKeys struct {
	VerificationKeyDERBase64 string `json:"verification_key_der_base64"`
}

// Available reports whether the authclient-testserver binary can be found.
func Available(binaryPath string) bool {
	return findBinary(binaryPath) != ""
}

// Start spawns an authclient-testserver and returns a handle to it.
// It registers cleanup with t.Cleanup().
func Start(t *testing.T, cfg Config) *Harness {
	t.Helper()

	binaryPath := findBinary(cfg.BinaryPath)
	if binaryPath == "" {
		t.Fatal("authclient-testserver binary not found (check PATH or set Config.BinaryPath or AUTHCLIENT_TESTSERVER_BIN)")
	}

	args := buildArgs(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, binaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		t.Fatalf("failed to create stdout pipe: %v", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		t.Fatalf("failed to create stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("failed to start authclient-testserver: %v", err)
	}

	// Read first line (JSON contract) from stdout
	scanner := bufio.NewScanner(stdout)
	if !scanner.Scan() {
		cancel()
		cmd.Wait()
		t.Fatal("failed to read JSON contract from authclient-testserver")
	}

	var contract outputContract
	if err := json.Unmarshal(scanner.Bytes(), &contract); err != nil {
		cancel()
		cmd.Wait()
		t.Fatalf("failed to parse JSON contract: %v", err)
	}

	verificationKeyDER, err := base64.StdEncoding.DecodeString(contract.Keys.VerificationKeyDERBase64)
	if err != nil {
		cancel()
		cmd.Wait()
		t.Fatalf("failed to decode verification key: %v", err)
	}

	accessLifetime, err := time.ParseDuration(contract.AccessLifetime)
	if err != nil {
		cancel()
		cmd.Wait()
		t.Fatalf("failed to parse access lifetime: %v", err)
	}

	// Stream remaining logs to test output if not quiet
	if !cfg.Quiet {
		go func() {
			for scanner.Scan() {
				t.Logf("[authclient-testserver] %s", scanner.Text())
			}
		}()

		go func() {
			stderrScanner := bufio.NewScanner(stderr)
			for stderrScanner.Scan() {
				t.Logf("[authclient-testserver stderr] %s", stderrScanner.Text())
			}
		}()
	}

	harness := &Harness{
		BaseURL:            contract.BaseURL,
		ControlURL:         contract.ControlURL,
		IssuerDomain:       contract.IssuerDomain,
		AccessLifetime:     accessLifetime,
		VerificationKeyDER: verificationKeyDER,
		Users:              make([]User, len(contract.Users)),
		cmd:                cmd,
		cancel:             cancel,
	}

	for i, user := range contract.Users {
		harness.Users[i] = User{Email: user.Email, Password: user.Password}
	}

	t.Cleanup(func() {
		if err := harness.Close(); err != nil {
			t.Logf("warning: harness cleanup failed: %v", err)
		}
	})

	return harness
}

// ExpireAccessTokens makes every access token issued so far answer
// token.expired.
func (h *Harness) ExpireAccessTokens() error {
	return h.control(http.MethodPost, "/expire", nil, nil)
}

// Revoke makes an access token answer token.invalid.
func (h *Harness) Revoke(access string) error {
	return h.control(http.MethodPost, "/revoke", map[string]string{"token": access}, nil)
}

// FailRefresh makes refresh calls answer with status. Zero restores them.
func (h *Harness) FailRefresh(status int) error {
	return h.control(http.MethodPost, "/refresh-failure", map[string]int{"status": status}, nil)
}

func (h *Harness) Stats() (Stats, error) {
	var stats Stats
	err := h.control(http.MethodGet, "/stats", nil, &stats)
	return stats, err
}

func (h *Harness) control(method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, h.ControlURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("control %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("control %s: status %d", path, res.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

// Close terminates the authclient-testserver process.
func (h *Harness) Close() error {
	if h.cancel != nil {
		h.cancel()
	}

	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	// Wait for graceful shutdown with timeout
	done := make(chan error, 1)
	go func() {
		done <- h.cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		if err := h.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("force kill: %w", err)
		}
		return fmt.Errorf("timeout waiting for graceful shutdown, process killed")
	}
}

func findBinary(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	if envPath := os.Getenv("AUTHCLIENT_TESTSERVER_BIN"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	if pathBinary, err := exec.LookPath(binaryName); err == nil {
		return pathBinary
	}

	return ""
}

func buildArgs(cfg Config) []string {
	var args []string

	if cfg.IssuerDomain != "" {
		args = append(args, "--issuer-domain", cfg.IssuerDomain)
	}

	if cfg.AccessLifetime != 0 {
		args = append(args, "--access-lifetime", cfg.AccessLifetime.String())
	}

	if cfg.ListenAddr != "" {
		args = append(args, "--listen", cfg.ListenAddr)
	}

	if cfg.Quiet {
		args = append(args, "--quiet")
	}

	for _, user := range cfg.Users {
		args = append(args, "--user", fmt.Sprintf("%s:%s", user.Email, user.Password))
	}

	return args
}
