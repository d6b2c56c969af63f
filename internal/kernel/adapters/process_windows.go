//go:build windows

package adapters

import (
	"os/exec"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/kodflow/agld/internal/kernel/ports"
)

const createNewProcessGroup = 0x00000200

// WindowsProcessControl manages child processes through Windows job
// objects so a whole tree can be torn down with one call, and mirrors
// the teacher's breakaway handling for soWinJobCloseChildren.
type WindowsProcessControl struct{}

// NewWindowsProcessControl builds a WindowsProcessControl.
func NewWindowsProcessControl() *WindowsProcessControl {
	return &WindowsProcessControl{}
}

// Prepare assigns cmd a new process group so CTRL_BREAK_EVENT can target
// it alone. breakaway marks the child as allowed to escape any job object
// the supervisor itself is running under.
func (WindowsProcessControl) Prepare(cmd *exec.Cmd, breakaway bool) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= createNewProcessGroup
	if breakaway {
		cmd.SysProcAttr.CreationFlags |= windows.CREATE_BREAKAWAY_FROM_JOB
	}
}

// Terminate assigns the child to a job with JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
// sends CTRL_BREAK_EVENT for a graceful shutdown, waits up to graceTimeout,
// and closes the job handle (which kills the whole tree) if it is still
// alive afterward.
func (WindowsProcessControl) Terminate(cmd *exec.Cmd, graceTimeout time.Duration) error {
	if cmd.Process == nil {
		return nil
	}

	job, err := createKillOnCloseJob()
	if err == nil {
		defer windows.CloseHandle(job)
		h, openErr := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
		if openErr == nil {
			_ = windows.AssignProcessToJobObject(job, h)
			windows.CloseHandle(h)
		}
	}

	_ = windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(cmd.Process.Pid))

	timer := time.NewTimer(graceTimeout)
	defer timer.Stop()

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	select {
	case err := <-waited:
		return err
	case <-timer.C:
		_ = cmd.Process.Kill()
		return ports.WrapError("terminate", <-waited)
	}
}

// createKillOnCloseJob creates an unnamed job object configured so that
// closing its handle terminates every process still assigned to it.
func createKillOnCloseJob() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, ports.WrapError("create_job_object", err)
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	_, err = windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		windows.CloseHandle(job)
		return 0, ports.WrapError("set_job_limits", err)
	}
	return job, nil
}

// WindowsServiceControl backs the "service" verb with the Service
// Control Manager. It is the only platform that supports it: the action
// package already filters "service" out of every non-Windows context.
type WindowsServiceControl struct{}

// NewWindowsServiceControl builds a WindowsServiceControl.
func NewWindowsServiceControl() *WindowsServiceControl {
	return &WindowsServiceControl{}
}

func (WindowsServiceControl) StartService(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return ports.WrapError("scm_connect", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return ports.WrapError("scm_open_service", err)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		return ports.WrapError("scm_start", err)
	}
	return nil
}

func (WindowsServiceControl) StopService(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return ports.WrapError("scm_connect", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return ports.WrapError("scm_open_service", err)
	}
	defer s.Close()

	if _, err := s.Control(svc.Stop); err != nil {
		return ports.WrapError("scm_stop", err)
	}
	return nil
}

func (WindowsServiceControl) QueryService(name string) (bool, error) {
	m, err := mgr.Connect()
	if err != nil {
		return false, ports.WrapError("scm_connect", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return false, ports.WrapError("scm_open_service", err)
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return false, ports.WrapError("scm_query", err)
	}
	return status.State == svc.Running, nil
}
