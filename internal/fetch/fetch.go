// Package fetch mirrors waveform and station metadata files from an FTP
// archive into the local data directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
	"github.com/lox/etna6c/internal/config"
	"github.com/lox/etna6c/internal/metrics"
)

// Options describes the remote archive.
type Options struct {
	Addr       string
	User       string
	Password   string
	RemoteDir  string
	Timeout    time.Duration
	MaxElapsed time.Duration
}

// Remote is the part of an FTP session the mirror needs.
type Remote interface {
	List(dir string) ([]*ftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

type ftpRemote struct {
	conn *ftp.ServerConn
}

func (r ftpRemote) List(dir string) ([]*ftp.Entry, error) { return r.conn.List(dir) }

func (r ftpRemote) Retr(p string) (io.ReadCloser, error) {
	resp, err := r.conn.Retr(p)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r ftpRemote) Quit() error { return r.conn.Quit() }

// Dial opens and authenticates an FTP session.
func Dial(ctx context.Context, opts Options) (Remote, error) {
	conn, err := ftp.Dial(opts.Addr, ftp.DialWithTimeout(opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	user, pass := opts.User, opts.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	return ftpRemote{conn: conn}, nil
}

// Result summarises a mirror run.
type Result struct {
	Downloaded int
	Skipped    int
	Bytes      int64
}

// Mirror copies matching remote files into the data directory.
type Mirror struct {
	remote    Remote
	remoteDir string
	data      config.Data

	newBackOff func() backoff.BackOff
}

// NewMirror uses an already authenticated session.
func NewMirror(remote Remote, opts Options, data config.Data) *Mirror {
	maxElapsed := opts.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}
	return &Mirror{
		remote:    remote,
		remoteDir: opts.RemoteDir,
		data:      data,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = maxElapsed
			return bo
		},
	}
}

// Patterns are the file name globs worth mirroring.
func Patterns(data config.Data) []string {
	return []string{data.TranslationalGlob, data.RotationalGlob, filepath.Base(data.Inventory)}
}

// Match reports whether name matches any pattern.
func Match(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Run lists the remote directory and downloads every matching file that is
// missing locally or differs in size.
func (m *Mirror) Run(ctx context.Context) (Result, error) {
	var res Result
	if err := os.MkdirAll(m.data.Dir, 0755); err != nil {
		return res, fmt.Errorf("create data directory: %w", err)
	}

	entries, err := m.remote.List(m.remoteDir)
	if err != nil {
		return res, fmt.Errorf("ftp list %s: %w", m.remoteDir, err)
	}

	patterns := Patterns(m.data)
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !Match(e.Name, patterns) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		local := filepath.Join(m.data.Dir, e.Name)
		if info, err := os.Stat(local); err == nil && uint64(info.Size()) == e.Size {
			res.Skipped++
			metrics.FetchTransfers.WithLabelValues("skipped").Inc()
			continue
		}

		n, err := m.download(ctx, e.Name, local)
		if err != nil {
			metrics.FetchTransfers.WithLabelValues("failed").Inc()
			return res, fmt.Errorf("download %s: %w", e.Name, err)
		}
		log.Printf("Fetched %s (%d bytes)", e.Name, n)
		metrics.FetchTransfers.WithLabelValues("ok").Inc()
		metrics.FetchBytes.Add(float64(n))
		res.Downloaded++
		res.Bytes += n
	}
	return res, nil
}

func (m *Mirror) download(ctx context.Context, name, local string) (int64, error) {
	var written int64
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		body, err := m.remote.Retr(path.Join(m.remoteDir, name))
		if err != nil {
			return fmt.Errorf("ftp retr: %w", err)
		}
		defer body.Close()

		tmp, err := os.CreateTemp(filepath.Dir(local), "."+name+".*")
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create temp file: %w", err))
		}
		n, err := io.Copy(tmp, body)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("copy: %w", err)
		}
		if err := os.Rename(tmp.Name(), local); err != nil {
			os.Remove(tmp.Name())
			return backoff.Permanent(fmt.Errorf("rename: %w", err))
		}
		written = n
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(m.newBackOff(), ctx)); err != nil {
		return 0, err
	}
	return written, nil
}
