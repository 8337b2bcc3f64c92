// Package sftpclient pulls HR CSV snapshot drops from an SFTP server. HR
// exports a fresh snapshot on a schedule; we always want the newest .csv in
// the drop directory.
package sftpclient

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Config struct {
	Host                  string
	Port                  int
	User                  string
	Pass                  string
	RemoteDir             string
	InsecureIgnoreHostKey bool
}

// FetchLatestCSV downloads the most recently modified .csv file in the drop
// directory and returns its name and contents.
func FetchLatestCSV(ctx context.Context, cfg Config) (string, []byte, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return "", nil, fmt.Errorf("sftp: missing env SFTP_HOST / SFTP_USER / SFTP_PASS")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}

	// TODO: replace with a known_hosts callback once the drop host has a
	// stable key we can pin.
	cb := ssh.InsecureIgnoreHostKey()

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: cb,
		Timeout:         20 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	// Dial in a goroutine so ctx can cancel the connect.
	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		return "", nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", nil, fmt.Errorf("sftp: dial error: %w", r.err)
		}
		sshClient = r.client
	}
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return "", nil, fmt.Errorf("sftp: new client: %w", err)
	}
	defer sftpCli.Close()

	entries, err := sftpCli.ReadDir(cfg.RemoteDir)
	if err != nil {
		return "", nil, fmt.Errorf("sftp: read dir %s: %w", cfg.RemoteDir, err)
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		if newest == "" || e.ModTime().After(newestTime) {
			newest = e.Name()
			newestTime = e.ModTime()
		}
	}
	if newest == "" {
		return "", nil, fmt.Errorf("sftp: no csv files in %s", cfg.RemoteDir)
	}

	remotePath := path.Join(cfg.RemoteDir, newest)
	f, err := sftpCli.Open(remotePath)
	if err != nil {
		return "", nil, fmt.Errorf("sftp: open %s: %w", remotePath, err)
	}
	defer f.Close()

	contents, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("sftp: read %s: %w", remotePath, err)
	}
	return newest, contents, nil
}
