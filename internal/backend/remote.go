package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"snapkeep/internal/sk"
)

const defaultSSHPort = 22

// RemoteOptions describes how to reach the storage host.
type RemoteOptions struct {
	Host           string
	User           string
	Port           int
	IdentityFile   string
	KnownHostsFile string
	Timeout        time.Duration
}

func (o RemoteOptions) port() int {
	if o.Port == 0 {
		return defaultSSHPort
	}
	return o.Port
}

// Remote keeps backup directories on another host. Metadata goes over one
// SFTP session held for the whole run; commands and rsync go through the
// ssh client binary so they share the operator's ssh configuration.
type Remote struct {
	opts   RemoteOptions
	conn   *ssh.Client
	client *sftp.Client
}

var _ sk.Backend = (*Remote)(nil)

// DialRemote opens the SSH connection and SFTP session. The host key must
// be present in the known hosts file.
func DialRemote(opts RemoteOptions) (*Remote, error) {
	cfg, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.port()))
	conn, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("starting sftp session on %s: %w", addr, err)
	}

	return &Remote{opts: opts, conn: conn, client: client}, nil
}

func clientConfig(opts RemoteOptions) (*ssh.ClientConfig, error) {
	knownHosts := opts.KnownHostsFile
	if knownHosts == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating known_hosts: %w", err)
		}
		knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeys, err := knownhosts.New(knownHosts)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts %s: %w", knownHosts, err)
	}

	var auth []ssh.AuthMethod
	if opts.IdentityFile != "" {
		key, err := os.ReadFile(opts.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("reading identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", opts.IdentityFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if c, err := net.Dial("unix", sock); err == nil {
			auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(c).Signers))
		}
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh credentials: set remote.identity_file or run an ssh agent")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

func (r *Remote) Stat(path string) (sk.FileStat, error) {
	info, err := r.client.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sk.FileStat{}, nil
		}
		return sk.FileStat{}, fmt.Errorf("stat %s:%s: %w", r.opts.Host, path, err)
	}
	return sk.FileStat{Exists: true, IsDir: info.IsDir(), ModTime: info.ModTime()}, nil
}

func (r *Remote) List(path string) ([]sk.DirEntry, error) {
	infos, err := r.client.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s:%s: %w", r.opts.Host, path, err)
	}
	out := make([]sk.DirEntry, len(infos))
	for i, info := range infos {
		out[i] = sk.DirEntry{Name: info.Name(), IsDir: info.IsDir()}
	}
	return out, nil
}

func (r *Remote) MkdirAll(path string) error {
	if err := r.client.MkdirAll(path); err != nil {
		return fmt.Errorf("creating %s:%s: %w", r.opts.Host, path, err)
	}
	return nil
}

func (r *Remote) Touch(path string, t time.Time) error {
	if err := r.client.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("touching %s:%s: %w", r.opts.Host, path, err)
	}
	return nil
}

func (r *Remote) WriteEmptyFile(path string) error {
	f, err := r.client.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s:%s: %w", r.opts.Host, path, err)
	}
	return f.Close()
}

func (r *Remote) UploadFile(localPath, path string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := r.client.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s:%s: %w", r.opts.Host, path, err)
	}
	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return fmt.Errorf("uploading to %s:%s: %w", r.opts.Host, path, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing %s:%s: %w", r.opts.Host, path, err)
	}
	return nil
}

// Command prefixes argv with the ssh transport. The remote shell re-splits
// the command line, so argv is quoted into a single word list.
func (r *Remote) Command(argv []string) []string {
	cmd := append([]string{"ssh"}, r.sshArgs()...)
	return append(cmd, r.destination(), shellquote.Join(argv...))
}

func (r *Remote) SyncDestination(path string) string {
	return r.destination() + ":" + path
}

// SyncTransport makes rsync reach the host with the same ssh options.
func (r *Remote) SyncTransport() []string {
	transport := append([]string{"ssh"}, r.sshArgs()...)
	return []string{"-e", shellquote.Join(transport...)}
}

func (r *Remote) sshArgs() []string {
	args := []string{"-o", "BatchMode=yes"}
	if r.opts.port() != defaultSSHPort {
		args = append(args, "-p", strconv.Itoa(r.opts.port()))
	}
	if r.opts.IdentityFile != "" {
		args = append(args, "-i", r.opts.IdentityFile)
	}
	if r.opts.KnownHostsFile != "" {
		args = append(args, "-o", "UserKnownHostsFile="+r.opts.KnownHostsFile)
	}
	return args
}

func (r *Remote) destination() string {
	if r.opts.User == "" {
		return r.opts.Host
	}
	return r.opts.User + "@" + r.opts.Host
}

// Close ends the SFTP session and the SSH connection.
func (r *Remote) Close() error {
	var errs []error
	if r.client != nil {
		errs = append(errs, r.client.Close())
	}
	if r.conn != nil {
		if err := r.conn.Close(); !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing connection to %s: %w", r.opts.Host, err)
	}
	return nil
}
