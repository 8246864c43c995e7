// Package vm implements the supplemental page table and lazy-loading
// page-fault path, grounded on original_source/vm/vm.c and
// vm/uninit.c's page-type dispatch and uninit_initialize lazy-init
// callback.
package vm

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/joeycumines/go-kernelsim"
)

// PageSize is the fixed page granularity.
const PageSize = 4096

// UserStackTop is the highest user-space address a stack may grow toward
// from; matches Pintos's USER_STACK.
const UserStackTop uintptr = 0x47480000

// MaxStackSize bounds how far below UserStackTop the stack may grow: a
// fault strictly below (UserStackTop - MaxStackSize) is never a legal
// stack-growth fault.
const MaxStackSize = 1 << 20 // 1 MiB

// KernelBase is the lowest address reserved for kernel space; matches
// Pintos's PHYS_BASE. A user-mode fault at or above this address is
// always invalid, independent of the SPT's contents.
const KernelBase uintptr = 0xc0000000

// PageKind tags which of the polymorphic page variants a Page is: a
// closed, tagged union (kind enum + payload) rather than an interface
// hierarchy, since the set of kinds is fixed and known.
type PageKind int

const (
	PageUninit PageKind = iota
	PageAnon
	PageFileBacked
)

// Initializer lazily produces a page's initial contents the first time it
// is faulted in: a page's backing content is not read until first
// touched. Grounded on uninit.c's page_initializer function pointer.
type Initializer func(frame []byte) error

// Page is a single supplemental-page-table entry: a tagged union of the
// three variants the original's vm_alloc_page_with_initializer dispatches
// on.
type Page struct {
	Addr uintptr
	Kind PageKind

	init     Initializer // only set for PageUninit
	Writable bool

	frame *Frame // nil until claimed
}

// Frame is a physical-page-sized backing buffer.
type Frame struct {
	Bytes []byte
}

// FrameAllocator bounds the number of physical frames an SPT may hand
// out. Satisfied by hal.PhysicalAllocator; a nil FrameAllocator (the
// default) models unbounded physical memory.
type FrameAllocator interface {
	Alloc() bool
	Free()
}

// SPT is a thread's supplemental page table: a map from page-aligned
// virtual address to Page descriptor.
type SPT struct {
	pages  map[uintptr]*Page
	frames FrameAllocator

	faultLimiter *catrate.Limiter
	logger       kernel.Logger
}

// SetLogger attaches a logger for unresolved-fault diagnostics; nil (the
// default) disables logging entirely.
func (s *SPT) SetLogger(logger kernel.Logger) {
	s.logger = logger
}

// SetFrameAllocator bounds this SPT's physical frame consumption to a.
// Once set, claiming a page when a is exhausted panics, matching
// palloc_get_page's PAL_ASSERT callers in the original's page-fault path
// ("out of physical memory in page fault" is a kernel panic, not a
// recoverable error). A nil allocator (the default) models unbounded
// physical memory.
func (s *SPT) SetFrameAllocator(a FrameAllocator) {
	s.frames = a
}

// NewSPT constructs an empty supplemental page table. Unresolvable-fault
// diagnostic logging is rate-limited via go-catrate, the same token-bucket
// limiter library the broader dependency pack uses for bounded-rate
// event admission, so a faulting process spinning on an illegal address
// cannot flood the kernel log.
func NewSPT() *SPT {
	return &SPT{
		pages: make(map[uintptr]*Page),
		faultLimiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 20,
		}),
	}
}

// newFrame allocates a fresh zeroed frame, consuming one unit of s.frames
// if a bound is configured. Panics if the bound is exhausted.
func (s *SPT) newFrame() *Frame {
	if s.frames != nil && !s.frames.Alloc() {
		panic("vm: out of physical memory")
	}
	return &Frame{Bytes: make([]byte, PageSize)}
}

// Destroy satisfies kernel.AddressSpace; it drops every page descriptor
// and backing frame, releasing each claimed frame back to the frame
// allocator: on process exit, every SPT entry is torn down, with
// uninitialized/never-claimed entries simply dropped.
func (s *SPT) Destroy() {
	if s.frames != nil {
		for _, p := range s.pages {
			if p.frame != nil {
				s.frames.Free()
			}
		}
	}
	s.pages = nil
}

var _ kernel.AddressSpace = (*SPT)(nil)

// AllocPage registers a lazily-initialized page at addr. Returns
// kernel.ErrMappingExists if addr is already mapped.
func (s *SPT) AllocPage(addr uintptr, writable bool, init Initializer) error {
	addr = pageAlign(addr)
	if _, exists := s.pages[addr]; exists {
		return kernel.ErrMappingExists
	}
	s.pages[addr] = &Page{Addr: addr, Kind: PageUninit, Writable: writable, init: init}
	return nil
}

// AllocAnon registers an anonymous (zero-initialized) page at addr.
func (s *SPT) AllocAnon(addr uintptr, writable bool) error {
	addr = pageAlign(addr)
	if _, exists := s.pages[addr]; exists {
		return kernel.ErrMappingExists
	}
	s.pages[addr] = &Page{Addr: addr, Kind: PageAnon, Writable: writable, frame: s.newFrame()}
	return nil
}

// Claim resolves addr to a backing frame, running the page's Initializer
// on first touch if it is still Uninit. Returns kernel.ErrNoSuchPage if
// addr is unmapped.
func (s *SPT) Claim(addr uintptr) (*Page, error) {
	p, ok := s.pages[pageAlign(addr)]
	if !ok {
		return nil, kernel.ErrNoSuchPage
	}
	if p.frame == nil {
		p.frame = s.newFrame()
		if p.init != nil {
			if err := p.init(p.frame.Bytes); err != nil {
				return nil, kernel.WrapError("vm: page initializer failed", err)
			}
		}
		p.Kind = PageAnon
	}
	return p, nil
}

// Lookup returns the page descriptor at addr without claiming it.
func (s *SPT) Lookup(addr uintptr) (*Page, bool) {
	p, ok := s.pages[pageAlign(addr)]
	return p, ok
}

// Copy duplicates the SPT for a forking child: every claimed page's frame
// is deep-copied (processes never share writable memory post-fork), and
// every still-uninitialized page keeps its Initializer so the child loads
// it independently on first touch. The child's SPT has no frame
// allocator of its own until SetFrameAllocator is called on it; callers
// that bound physical memory should configure the child separately.
func (s *SPT) Copy() *SPT {
	dup := NewSPT()
	for addr, p := range s.pages {
		cp := &Page{Addr: addr, Kind: p.Kind, Writable: p.Writable, init: p.init}
		if p.frame != nil {
			cp.frame = dup.newFrame()
			copy(cp.frame.Bytes, p.frame.Bytes)
		}
		dup.pages[addr] = cp
	}
	return dup
}

// HandleFault resolves a page fault at faultAddr for a thread whose
// current user stack pointer is sp and whose access was a write if
// isWrite is true: a fault at or above KernelBase is always invalid; an
// existing SPT entry is checked against isWrite and Writable, then
// claimed; otherwise, if faultAddr qualifies as stack growth (within
// MaxStackSize of UserStackTop, at or above sp-8), a fresh anonymous page
// is allocated and claimed; anything else is an unrecoverable fault and
// returns a *kernel.PageFaultError.
func (s *SPT) HandleFault(faultAddr, sp uintptr, isWrite bool) (*Page, error) {
	if faultAddr >= KernelBase {
		return nil, &kernel.PageFaultError{Addr: faultAddr, Message: "fault address is in kernel space"}
	}

	if p, ok := s.Lookup(faultAddr); ok {
		if isWrite && !p.Writable {
			return nil, &kernel.PageFaultError{Addr: faultAddr, Message: "write to read-only page"}
		}
		return s.Claim(faultAddr)
	}

	if isStackGrowth(faultAddr, sp) {
		if err := s.AllocAnon(faultAddr, true); err != nil {
			return nil, err
		}
		return s.Claim(faultAddr)
	}

	s.logUnresolvedFault(faultAddr)
	return nil, &kernel.PageFaultError{Addr: faultAddr, Message: "no SPT entry and not a legal stack-growth fault"}
}

func (s *SPT) logUnresolvedFault(addr uintptr) {
	if s.logger == nil || !s.logger.IsEnabled(kernel.LevelWarn) {
		return
	}
	if _, ok := s.faultLimiter.Allow("unresolved-fault"); !ok {
		return
	}
	s.logger.Log(kernel.NewLogEntry(kernel.LevelWarn, "vm", "unresolved page fault").
		Field("addr", fmt.Sprintf("0x%x", addr)).
		Build())
}

// isStackGrowth reports whether faultAddr is a legal stack-growth fault
// relative to stack pointer sp: within the user stack region, no more
// than 1MiB below UserStackTop, and no more than 8 bytes below sp (the
// PUSHA/PUSH instruction's maximum underrun).
func isStackGrowth(faultAddr, sp uintptr) bool {
	if faultAddr > UserStackTop {
		return false
	}
	if faultAddr < UserStackTop-MaxStackSize {
		return false
	}
	if sp >= 8 && faultAddr < sp-8 {
		return false
	}
	return true
}

func pageAlign(addr uintptr) uintptr {
	return addr &^ (PageSize - 1)
}
