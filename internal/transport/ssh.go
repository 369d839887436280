// Package transport runs Juju on another machine over SSH.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/melih-ucgun/vigil/internal/config"
	"github.com/melih-ucgun/vigil/internal/core"
)

const dialTimeout = 15 * time.Second

// SSHRunner is a core.Runner that executes commands on a remote host.
type SSHRunner struct {
	client *ssh.Client
	remote config.Remote
}

// NewSSHRunner opens a connection to r. Host keys are always checked against
// a known_hosts file; there is no insecure fallback.
func NewSSHRunner(ctx context.Context, r config.Remote) (*SSHRunner, error) {
	auth, err := authMethods(r)
	if err != nil {
		return nil, err
	}

	knownHostsPath, err := expandHome(r.KnownHosts)
	if err != nil {
		return nil, err
	}
	if knownHostsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		knownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeyCallback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts (%s): %w; connect once with ssh to record the host key", knownHostsPath, err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            r.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}

	addr := address(r)
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &SSHRunner{client: ssh.NewClient(c, chans, reqs), remote: r}, nil
}

func address(r config.Remote) string {
	port := r.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(r.Address, strconv.Itoa(port))
}

func authMethods(r config.Remote) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if r.KeyPath != "" {
		path, err := expandHome(r.KeyPath)
		if err != nil {
			return nil, err
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing ssh key %s: %w", path, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if r.Password != "" {
		methods = append(methods, ssh.Password(r.Password))
	}

	if len(methods) == 0 {
		return nil, errors.New("remote: key_path or password is required")
	}
	return methods, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// Run executes the command in a new session. Cancelling ctx closes the
// session.
func (s *SSHRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	err = session.Run(ShellJoin(name, args...))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.String(), stderr.String(), ctxErr
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), &core.ExitError{Code: exitErr.ExitStatus(), Err: err}
	}
	return stdout.String(), stderr.String(), err
}

func (s *SSHRunner) String() string {
	return fmt.Sprintf("ssh://%s@%s", s.remote.User, address(s.remote))
}

func (s *SSHRunner) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ShellJoin builds a POSIX shell command line, quoting words that need it.
func ShellJoin(name string, args ...string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{name}, args...) {
		words = append(words, shellQuote(w))
	}
	return strings.Join(words, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@,+%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
