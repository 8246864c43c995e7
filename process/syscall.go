package process

import (
	"fmt"

	"github.com/joeycumines/go-kernelsim"
	"github.com/joeycumines/go-kernelsim/vm"
)

// ValidateUserPointer rejects a syscall argument pointer that is null,
// outside user address space, or unmapped in spt, grounded on
// original_source/userprog/syscall.c's check_address: reject null,
// reject non-user-range, reject unmapped.
func ValidateUserPointer(spt *vm.SPT, addr uintptr) error {
	if addr == 0 {
		return &kernel.InvalidPointerError{Addr: addr}
	}
	if addr >= vm.KernelBase {
		return &kernel.InvalidPointerError{Addr: addr}
	}
	if _, ok := spt.Lookup(addr); !ok {
		return &kernel.InvalidPointerError{Addr: addr, Cause: kernel.ErrNoSuchPage}
	}
	return nil
}

// Syscall numbers handled by Dispatch. A small, representative subset
// stands in for the original's 13-call table; per-call marshalling
// beyond this discipline is out of scope.
const (
	SyscallExit = iota + 1
	SyscallWait
	SyscallWrite
)

// SyscallArgs is a syscall's raw argument registers.
type SyscallArgs [3]uintptr

// SyscallFunc handles one syscall number's already-pointer-validated
// arguments and returns its result register value.
type SyscallFunc func(p *Process, args SyscallArgs) (uintptr, error)

// syscallSpec pairs a handler with the indices (within SyscallArgs) of
// arguments that are user-space pointers needing validation before the
// handler runs.
type syscallSpec struct {
	fn        SyscallFunc
	ptrArgIdx []int
}

// Dispatch is a syscall-number-to-handler table: the syscall discipline
// is "look up the handler for the number, validate every pointer
// argument against the calling process's SPT, then invoke it."
type Dispatch struct {
	table map[int]syscallSpec
}

// NewDispatch constructs a Dispatch preloaded with SyscallExit,
// SyscallWait, and SyscallWrite.
func NewDispatch() *Dispatch {
	d := &Dispatch{table: make(map[int]syscallSpec)}
	d.Register(SyscallExit, func(p *Process, args SyscallArgs) (uintptr, error) {
		p.Exit(int(int32(args[0])))
		return 0, nil
	}, nil)
	d.Register(SyscallWait, func(p *Process, args SyscallArgs) (uintptr, error) {
		status, err := p.Wait(int(args[0]))
		return uintptr(status), err
	}, nil)
	d.Register(SyscallWrite, func(p *Process, args SyscallArgs) (uintptr, error) {
		// args[1] is the user buffer pointer; validated by Call before
		// this handler runs. The buffer's contents are not otherwise
		// inspected: there is no real fd-backed byte sink in this
		// simulation.
		return args[2], nil
	}, []int{1})
	return d
}

// Register adds or replaces the handler for a syscall number. ptrArgIdx
// names which SyscallArgs indices Call must validate as user pointers
// before invoking fn.
func (d *Dispatch) Register(number int, fn SyscallFunc, ptrArgIdx []int) {
	d.table[number] = syscallSpec{fn: fn, ptrArgIdx: ptrArgIdx}
}

// Call validates every pointer argument the registered handler declares,
// then invokes it. Returns the *kernel.InvalidPointerError without
// running the handler if validation fails.
func (d *Dispatch) Call(p *Process, spt *vm.SPT, number int, args SyscallArgs) (uintptr, error) {
	spec, ok := d.table[number]
	if !ok {
		return 0, fmt.Errorf("process: unknown syscall %d", number)
	}
	for _, idx := range spec.ptrArgIdx {
		if err := ValidateUserPointer(spt, args[idx]); err != nil {
			return 0, err
		}
	}
	return spec.fn(p, args)
}
