package host

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/ifconverge/pkg/util"
)

// SSHConfig describes how to reach a remote host.
type SSHConfig struct {
	Addr           string // host or host:port
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string
	Timeout        time.Duration
}

// SSHHost runs commands and sysfs file operations on a remote machine over
// one SSH connection. Every call opens its own session.
type SSHHost struct {
	client *ssh.Client
	addr   string
}

// DialSSH connects to the remote host and returns a Host using it for both
// commands and sysfs access.
func DialSSH(cfg SSHConfig) (*Host, error) {
	s, err := dialSSH(cfg)
	if err != nil {
		return nil, err
	}
	h := New(s, s)
	h.closer = s
	return h, nil
}

func dialSSH(cfg SSHConfig) (*SSHHost, error) {
	addr := cfg.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading SSH key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH key %s: %w", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("SSH %s: no key file or password given: %w", addr, util.ErrInvalidConfig)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKeyCallback = cb
	} else {
		util.Logger.Warnf("SSH to %s: host key verification disabled (no known_hosts file)", addr)
	}

	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s@%s: %w", cfg.User, addr, err)
	}
	return &SSHHost{client: client, addr: addr}, nil
}

// Close closes the SSH connection.
func (s *SSHHost) Close() error {
	return s.client.Close()
}

// Run executes name with args on the remote host. Arguments are single
// quoted so the remote shell sees them verbatim.
func (s *SSHHost) Run(ctx context.Context, name string, args ...string) (string, error) {
	argv := append([]string{name}, args...)
	out, err := s.exec(ctx, strings.Join(quoteArgs(argv), " "))
	if err != nil {
		return out, util.NewCommandError(argv, out, err)
	}
	return out, nil
}

func (s *SSHHost) exec(ctx context.Context, cmd string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var outputBuf bytes.Buffer
	session.Stdout = &outputBuf
	session.Stderr = &outputBuf

	util.Debugf("ssh %s: %s", s.addr, cmd)
	if err := session.Start(cmd); err != nil {
		return "", fmt.Errorf("SSH start: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return outputBuf.String(), ctx.Err()
	case err := <-done:
		return outputBuf.String(), err
	}
}

// ReadFile returns the contents of a remote file.
func (s *SSHHost) ReadFile(path string) ([]byte, error) {
	out, err := s.exec(context.Background(), "cat "+singleQuote(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %s", path, err, strings.TrimSpace(out))
	}
	return []byte(out), nil
}

// WriteFile writes data to an existing remote file.
func (s *SSHHost) WriteFile(path string, data []byte) error {
	cmd := "printf '%s' " + singleQuote(string(data)) + " > " + singleQuote(path)
	out, err := s.exec(context.Background(), cmd)
	if err != nil {
		return fmt.Errorf("writing %s: %w: %s", path, err, strings.TrimSpace(out))
	}
	return nil
}

// Exists reports whether path exists on the remote host.
func (s *SSHHost) Exists(path string) bool {
	_, err := s.exec(context.Background(), "test -e "+singleQuote(path))
	return err == nil
}

// IsDir reports whether path is a directory on the remote host.
func (s *SSHHost) IsDir(path string) bool {
	_, err := s.exec(context.Background(), "test -d "+singleQuote(path))
	return err == nil
}
