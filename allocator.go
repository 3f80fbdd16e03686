package strale

import (
	"fmt"
	"sync"

	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// MemoryLocation is the memory class a buffer lives in.
type MemoryLocation int

const (
	// GpuOnly is device-local memory the host never maps.
	GpuOnly MemoryLocation = iota
	// CpuToGpu is host-visible coherent memory, device-local when possible.
	CpuToGpu
)

func (l MemoryLocation) String() string {
	if l == CpuToGpu {
		return "cpu-to-gpu"
	}
	return "gpu-only"
}

// DefaultBlockSize is the size of each shared memory block.
const DefaultBlockSize uint64 = 64 << 20

// Allocation is a range of device memory handed to one resource.
type Allocation struct {
	Memory    driver.Memory
	Offset    uint64
	Size      uint64
	TypeIndex uint32
	Location  MemoryLocation

	mapped    []byte
	block     *memoryBlock
	dedicated bool
}

// Mapped is the host view of the allocation, nil for GpuOnly memory.
func (a *Allocation) Mapped() []byte { return a.mapped }

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

type memoryBlock struct {
	mem       driver.Memory
	size      uint64
	typeIndex uint32
	mapped    []byte
	allocs    []*Allocation // sorted by offset
}

func alignUp(a, align uint64) uint64 {
	if align <= 1 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return a - m + align
}

// First fit between live ranges, then after the last one
func (b *memoryBlock) place(size, align uint64) (uint64, int, bool) {
	var cursor uint64
	for i, a := range b.allocs {
		off := alignUp(cursor, align)
		if off+size <= a.Offset {
			return off, i, true
		}
		cursor = a.Offset + a.Size
	}
	off := alignUp(cursor, align)
	if off+size <= b.size {
		return off, len(b.allocs), true
	}
	return 0, 0, false
}

func (b *memoryBlock) used() uint64 {
	var n uint64
	for _, a := range b.allocs {
		n += a.Size
	}
	return n
}

// Allocator sub-allocates device memory for buffers. It is shared by every
// caller that creates buffers, so all methods serialize on one mutex.
type Allocator struct {
	mu sync.Mutex

	dev       driver.Device
	types     []driver.MemoryType
	blockSize uint64
	blocks    []*memoryBlock
	dedicated []*Allocation
	log       *Logger
}

func NewAllocator(dev driver.Device, info driver.PhysicalDeviceInfo, log *Logger) *Allocator {
	return &Allocator{
		dev:       dev,
		types:     info.MemoryTypes,
		blockSize: DefaultBlockSize,
		log:       log,
	}
}

// FindMemoryType returns the first type allowed by typeBits that has every
// required flag, preferring one that also has the preferred flags.
func FindMemoryType(types []driver.MemoryType, typeBits uint32, required, preferred driver.MemoryPropertyFlags) (uint32, bool) {
	want := required | preferred
	for i, t := range types {
		if typeBits&(1<<uint(i)) != 0 && t.Flags&want == want {
			return uint32(i), true
		}
	}
	for i, t := range types {
		if typeBits&(1<<uint(i)) != 0 && t.Flags&required == required {
			return uint32(i), true
		}
	}
	return 0, false
}

func locationFlags(loc MemoryLocation) (required, preferred driver.MemoryPropertyFlags) {
	if loc == CpuToGpu {
		return driver.MemoryHostVisible | driver.MemoryHostCoherent, driver.MemoryDeviceLocal
	}
	return driver.MemoryDeviceLocal, 0
}

// Allocate returns memory satisfying req in the given location.
func (a *Allocator) Allocate(req driver.MemoryRequirements, loc MemoryLocation) (*Allocation, error) {
	required, preferred := locationFlags(loc)
	typeIndex, ok := FindMemoryType(a.types, req.TypeBits, required, preferred)
	if !ok {
		return nil, errors.Errorf("no %s memory type in type bits %#b", loc, req.TypeBits)
	}
	hostVisible := a.types[typeIndex].Flags&driver.MemoryHostVisible != 0

	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Size > a.blockSize {
		return a.allocateDedicated(req.Size, typeIndex, loc, hostVisible)
	}

	for _, b := range a.blocks {
		if b.typeIndex != typeIndex {
			continue
		}
		if off, at, ok := b.place(req.Size, req.Alignment); ok {
			return b.insert(off, req.Size, at, loc), nil
		}
	}

	mem, err := a.dev.AllocateMemory(a.blockSize, typeIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d byte block of type %d", a.blockSize, typeIndex)
	}
	b := &memoryBlock{mem: mem, size: a.blockSize, typeIndex: typeIndex}
	if hostVisible {
		b.mapped, err = a.dev.MapMemory(mem, 0, driver.WholeSize)
		if err != nil {
			a.dev.FreeMemory(mem)
			return nil, errors.Wrap(err, "map memory block")
		}
	}
	a.blocks = append(a.blocks, b)
	a.log.Infof("allocator: new %d MiB block of memory type %d", a.blockSize>>20, typeIndex)
	return b.insert(0, req.Size, 0, loc), nil
}

func (b *memoryBlock) insert(off, size uint64, at int, loc MemoryLocation) *Allocation {
	al := &Allocation{
		Memory:    b.mem,
		Offset:    off,
		Size:      size,
		TypeIndex: b.typeIndex,
		Location:  loc,
		block:     b,
	}
	if b.mapped != nil {
		al.mapped = b.mapped[off : off+size : off+size]
	}
	b.allocs = append(b.allocs, nil)
	copy(b.allocs[at+1:], b.allocs[at:])
	b.allocs[at] = al
	return al
}

func (a *Allocator) allocateDedicated(size uint64, typeIndex uint32, loc MemoryLocation, hostVisible bool) (*Allocation, error) {
	mem, err := a.dev.AllocateMemory(size, typeIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate dedicated %d bytes of type %d", size, typeIndex)
	}
	al := &Allocation{
		Memory:    mem,
		Size:      size,
		TypeIndex: typeIndex,
		Location:  loc,
		dedicated: true,
	}
	if hostVisible {
		al.mapped, err = a.dev.MapMemory(mem, 0, size)
		if err != nil {
			a.dev.FreeMemory(mem)
			return nil, errors.Wrap(err, "map dedicated memory")
		}
	}
	a.dedicated = append(a.dedicated, al)
	return al, nil
}

// Free returns the range to its block. Blocks are kept for reuse until
// Destroy.
func (a *Allocator) Free(al *Allocation) {
	if al == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if al.dedicated {
		for i, d := range a.dedicated {
			if d == al {
				a.dedicated = append(a.dedicated[:i], a.dedicated[i+1:]...)
				if al.mapped != nil {
					a.dev.UnmapMemory(al.Memory)
				}
				a.dev.FreeMemory(al.Memory)
				break
			}
		}
		return
	}
	b := al.block
	if b == nil {
		return
	}
	for i, x := range b.allocs {
		if x == al {
			b.allocs = append(b.allocs[:i], b.allocs[i+1:]...)
			break
		}
	}
	al.block = nil
	al.mapped = nil
}

// Usage is a snapshot of allocator occupancy.
type Usage struct {
	Blocks         int
	BlockBytes     uint64
	UsedBytes      uint64
	Dedicated      int
	DedicatedBytes uint64
}

func (a *Allocator) Usage() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	var u Usage
	for _, b := range a.blocks {
		u.Blocks++
		u.BlockBytes += b.size
		u.UsedBytes += b.used()
	}
	for _, d := range a.dedicated {
		u.Dedicated++
		u.DedicatedBytes += d.Size
	}
	return u
}

// Report logs current occupancy.
func (a *Allocator) Report() {
	u := a.Usage()
	a.log.Infof("allocator: %d blocks, %d/%d bytes used, %d dedicated (%d bytes)",
		u.Blocks, u.UsedBytes, u.BlockBytes, u.Dedicated, u.DedicatedBytes)
}

// Destroy frees every block. Live allocations are reported as leaks.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range a.blocks {
		if n := len(b.allocs); n > 0 {
			a.log.Warnf("allocator: %d allocations still live in block of type %d", n, b.typeIndex)
		}
		if b.mapped != nil {
			a.dev.UnmapMemory(b.mem)
		}
		a.dev.FreeMemory(b.mem)
	}
	for _, d := range a.dedicated {
		a.log.Warnf("allocator: dedicated allocation of %d bytes still live", d.Size)
		if d.mapped != nil {
			a.dev.UnmapMemory(d.Memory)
		}
		a.dev.FreeMemory(d.Memory)
	}
	a.blocks = nil
	a.dedicated = nil
}
