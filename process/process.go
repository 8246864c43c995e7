// Package process implements the fork/wait/exit/exec process hierarchy
// layered over a kernel.Scheduler, grounded on
// original_source/userprog/process.c's process_fork/process_wait/
// process_exit/process_exec.
package process

import (
	"fmt"

	"github.com/joeycumines/go-kernelsim"
)

// DenyWriter is optionally implemented by a Loader-returned FileHandle:
// while a process has claimed deny-write on its backing executable, other
// writers are refused until AllowWrite releases the claim.
type DenyWriter interface {
	DenyWrite()
	AllowWrite()
}

// Loader builds the initial address space and register state for a
// process's first thread (the exec path). This module ships no concrete
// Loader; callers supply one, and this package only invokes it.
type Loader interface {
	// Load builds t's address space for the named executable and
	// argument vector, returning the address space to attach to t, the
	// entry point to resume at, and (if the loader opened one) the
	// backing executable's FileHandle. An error here makes Exec exit the
	// calling thread with status -1. Fork does not call Load.
	Load(t *kernel.Thread, name string, argv []string) (as kernel.AddressSpace, entry uintptr, execFile kernel.FileHandle, err error)
}

// Process wraps a kernel.Thread with fork/wait/exec/exit operations and a
// write-deny claim on the backing executable file while it is running.
// Exit status and waited-on tracking live on the wrapped kernel.Thread.
type Process struct {
	sched  *kernel.Scheduler
	loader Loader

	Thread     *kernel.Thread
	Executable string

	// execFile and denyWriteHeld implement "a running process's
	// executable file is open for reading only; writes to it are denied
	// until the process exits (or exec's something else)". denyWriteHeld
	// guards against releasing a claim twice.
	execFile      kernel.FileHandle
	denyWriteHeld bool
}

// New wraps an already-spawned kernel thread as a Process.
func New(sched *kernel.Scheduler, loader Loader, t *kernel.Thread, executable string) *Process {
	return &Process{sched: sched, loader: loader, Thread: t, Executable: executable}
}

// Exec replaces the calling process's address space with a freshly loaded
// executable. On load failure, the calling thread exits with status -1,
// matching the original's "a failed exec kills the process rather than
// returning an error to a live thread."
func (p *Process) Exec(name string, argv []string) {
	as, entry, execFile, err := p.loader.Load(p.Thread, name, argv)
	if err != nil {
		p.Thread.ExitStatus = -1
		p.sched.Exit(-1)
		return
	}
	if p.Thread.AddrSpace != nil {
		p.Thread.AddrSpace.Destroy()
	}
	p.Thread.AddrSpace = as
	p.Executable = name
	p.setExecFile(execFile)
	_ = entry // consumed by the caller's own resume-at-entry trampoline
}

// setExecFile releases any deny-write claim on the previously
// running executable and claims one on f, if f supports it.
func (p *Process) setExecFile(f kernel.FileHandle) {
	p.releaseDenyWrite()
	p.execFile = f
	if dw, ok := f.(DenyWriter); ok {
		dw.DenyWrite()
		p.denyWriteHeld = true
	}
}

// releaseDenyWrite releases the current deny-write claim, if held.
// Safe to call more than once.
func (p *Process) releaseDenyWrite() {
	if !p.denyWriteHeld {
		return
	}
	if dw, ok := p.execFile.(DenyWriter); ok {
		dw.AllowWrite()
	}
	p.denyWriteHeld = false
}

// Fork spawns a child thread that is a logical copy of the caller: new
// thread control block, the address space childAS supplied by the caller
// (Fork does not copy one itself; a nil childAS makes the fork fail), and
// an independent file-descriptor table (fd tables are
// never shared across a fork). Fork blocks the caller until the child has
// either finished its copy-and-launch (forkOK true) or failed (forkOK
// false), exactly mirroring process_fork's use of a fork semaphore around
// sema_down on the child's load completion.
func (p *Process) Fork(name string, childAS kernel.AddressSpace, entry func(s *kernel.Scheduler, self *kernel.Thread)) (*Process, error) {
	parent := p.Thread

	child := p.sched.Spawn(name, parent.EffectivePriority, func(s *kernel.Scheduler, self *kernel.Thread) {
		self.AddrSpace = childAS
		self.Parent = parent
		self.InheritFDs(parent)
		self.RaiseForkSync(childAS != nil)
		if childAS == nil {
			s.Exit(-1)
			return
		}
		entry(s, self)
	}, nil)

	parent.Children = append(parent.Children, child)

	child.WaitForkSync()
	if !child.ForkOK() {
		return nil, fmt.Errorf("kernel/process: fork of %q failed", name)
	}
	return New(p.sched, p.loader, child, name), nil
}

// Wait blocks until the child thread identified by tid has exited, then
// returns its exit status and marks tid as waited on (a tid may be waited
// on at most once). It returns kernel.ErrUnknownChild if tid does not
// name a living-or-exited child of the caller, and kernel.ErrDoubleWait
// if tid has already been waited on.
func (p *Process) Wait(tid int) (int, error) {
	self := p.Thread

	var target *kernel.Thread
	for _, c := range self.Children {
		if c.ID == tid {
			target = c
			break
		}
	}
	if target == nil {
		return 0, kernel.ErrUnknownChild
	}
	if self.HasWaited(tid) {
		return 0, kernel.ErrDoubleWait
	}

	target.WaitExitSync()
	self.MarkWaited(tid)
	return target.ExitStatus, nil
}

// Exit tears down the process's resources — closing every open file
// descriptor and releasing the executable write-deny claim — then exits
// the underlying thread with status.
func (p *Process) Exit(status int) {
	p.closeAllFDs()
	p.releaseDenyWrite()
	p.Thread.ExitStatus = status
	p.sched.Exit(status)
}

// closeAllFDs closes every fd in the thread's table, one at a time: only
// one goroutine besides parked batons is ever active in this simulation,
// so there is nothing for a concurrent fan-out to buy here, matching
// original_source/userprog/process.c's sequential close loop in
// process_exit.
func (p *Process) closeAllFDs() {
	for _, fd := range p.Thread.OpenFDs() {
		p.Thread.CloseFD(fd)
	}
}
