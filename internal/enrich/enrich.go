// Package enrich adds details about the connecting process, read from
// /proc, to a decoded connection. Lookups are best effort: by the time a
// record is read the process may have exited, or its files may be
// unreadable.
package enrich

import (
	"errors"
	"io/fs"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/your-org/connmon/internal/model"
)

const (
	StatusTerminated = "terminated"
	StatusRestricted = "restricted"
)

// Process fills ExePath, ParentPid, Username and Status of conn from the
// process conn.Pid. Fields that cannot be read are left empty and Status
// says why.
func Process(conn *model.Connection) {
	proc, err := process.NewProcess(int32(conn.Pid))
	if err != nil {
		conn.Status = StatusTerminated
		return
	}

	var failed error
	if exe, err := proc.Exe(); err != nil {
		failed = err
	} else {
		conn.ExePath = exe
	}
	if ppid, err := proc.Ppid(); err != nil {
		failed = err
	} else {
		conn.ParentPid = ppid
	}
	// user lookup also fails for uids missing from the passwd database
	if name, err := proc.Username(); err == nil {
		conn.Username = name
	}

	status, err := proc.Status()
	switch {
	case err != nil:
		conn.Status = reason(err)
	case failed != nil:
		conn.Status = reason(failed)
	case len(status) > 0:
		conn.Status = status[0]
	}
}

func reason(err error) string {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, process.ErrorProcessNotRunning) {
		return StatusTerminated
	}
	return StatusRestricted
}
