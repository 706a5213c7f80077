package backend

import (
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"sort"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/xtxerr/numass/internal/errors"
)

// SFTPConfig describes a remote storage root.
type SFTPConfig struct {
	Addr     string
	User     string
	Password string
	KeyFile  string

	// KnownHostsFile verifies the server key. Required unless
	// InsecureIgnoreHostKey is set.
	KnownHostsFile        string
	InsecureIgnoreHostKey bool

	// Root is the remote directory of the storage.
	Root    string
	Timeout time.Duration
}

// SFTP is a backend on a remote directory.
type SFTP struct {
	client  *sftp.Client
	root    string
	name    string
	closers []io.Closer
}

// DialSFTP connects to cfg.Addr and opens an SFTP session.
func DialSFTP(cfg SFTPConfig) (*SFTP, error) {
	clientConfig, err := sshClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := ssh.Dial("tcp", cfg.Addr, clientConfig)
	if err != nil {
		return nil, errors.WrapIO(err, "ssh dial", cfg.Addr)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapIO(err, "sftp session", cfg.Addr)
	}

	s := NewSFTP(client, cfg.Root, conn)
	s.name = fmt.Sprintf("sftp://%s@%s%s", cfg.User, cfg.Addr, s.root)
	log.Info("connected to remote storage", "backend", s.name)
	return s, nil
}

// NewSFTP wraps an established client. closers are closed after the client.
func NewSFTP(client *sftp.Client, root string, closers ...io.Closer) *SFTP {
	if root == "" {
		root = "/"
	}
	root = path.Clean(root)
	return &SFTP{
		client:  client,
		root:    root,
		name:    "sftp:" + root,
		closers: closers,
	}
}

func sshClientConfig(cfg SFTPConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapIO(err, "read key", cfg.KeyFile)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.NewValidation("sftp.key_file", err.Error())
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.NewMissingField("sftp.password or sftp.key_file")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case cfg.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	case cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, errors.WrapIO(err, "read known hosts", cfg.KnownHostsFile)
		}
		hostKey = cb
	default:
		return nil, errors.NewMissingField("sftp.known_hosts_file")
	}

	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, errors.NewInvalidValue("sftp.addr", cfg.Addr, err.Error())
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}, nil
}

// Name implements Backend.
func (s *SFTP) Name() string { return s.name }

func (s *SFTP) abs(p string) string {
	return path.Join(s.root, Clean(p))
}

// List implements Backend.
func (s *SFTP) List(dir string) ([]Entry, error) {
	infos, err := s.client.ReadDir(s.abs(dir))
	if err != nil {
		return nil, mapSFTPErr(err, "list", dir)
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, entryFromInfo(info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Open implements Backend. The returned file implements io.ReaderAt and
// io.Seeker.
func (s *SFTP) Open(p string) (io.ReadCloser, error) {
	f, err := s.client.Open(s.abs(p))
	if err != nil {
		return nil, mapSFTPErr(err, "open", p)
	}
	return f, nil
}

// Create implements Backend.
func (s *SFTP) Create(p string) (io.WriteCloser, error) {
	target := s.abs(p)
	if err := s.client.MkdirAll(path.Dir(target)); err != nil {
		return nil, errors.WrapIO(err, "mkdir", p)
	}
	f, err := s.client.Create(target)
	if err != nil {
		return nil, errors.WrapIO(err, "create", p)
	}
	return f, nil
}

// Stat implements Backend.
func (s *SFTP) Stat(p string) (Entry, error) {
	info, err := s.client.Stat(s.abs(p))
	if err != nil {
		return Entry{}, mapSFTPErr(err, "stat", p)
	}
	return entryFromInfo(info), nil
}

// Close implements Backend.
func (s *SFTP) Close() error {
	errs := []error{s.client.Close()}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func mapSFTPErr(err error, op, p string) error {
	if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
		return notFound(p, err)
	}
	return errors.WrapIO(err, op, p)
}
