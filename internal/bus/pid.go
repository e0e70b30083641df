package bus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PidFile guards against two daemons sharing one socket and store.
type PidFile struct {
	Path string
}

func NewPidFile() (*PidFile, error) {
	path, err := PidPath()
	if err != nil {
		return nil, err
	}
	return &PidFile{Path: path}, nil
}

// CheckExisting fails when the recorded process is still alive and
// removes stale or unreadable pid files.
func (p *PidFile) CheckExisting() error {
	pidData, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil || pid <= 0 {
		_ = os.Remove(p.Path)
		return nil
	}

	if !isProcessAlive(pid) {
		_ = os.Remove(p.Path)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *PidFile) Create() error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *PidFile) Remove() error {
	err := os.Remove(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks existence; EPERM means it exists but belongs to someone else
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
