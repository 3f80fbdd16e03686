package strale

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Setup failures. They are returned wrapped with the failing operation and
// are matched with errors.Is.
var (
	ErrDriverLoad       = errors.New("graphics driver could not be loaded")
	ErrNoSuitableDevice = errors.New("no suitable physical device")
	ErrMissingExtension = errors.New("required extension missing")
	ErrNoQueueFamily    = errors.New("no graphics queue family")
	ErrShaderModule     = errors.New("shader module creation failed")
	ErrFeatureMissing   = errors.New("required device feature missing")
)

// ErrRecreateNeeded is the single recoverable steady-state signal: the
// swapchain no longer matches the surface and must be rebuilt.
var ErrRecreateNeeded = errors.New("swapchain must be recreated")

// MissingExtensionError lists every required extension a device lacks.
type MissingExtensionError struct {
	Extensions []string
}

func (e *MissingExtensionError) Error() string {
	return fmt.Sprintf("missing required extensions: %s", strings.Join(e.Extensions, ", "))
}

func (e *MissingExtensionError) Is(target error) bool {
	return target == ErrMissingExtension
}

// OwnershipViolation is the panic value raised when a frame slot is claimed
// twice or a frame token is released twice.
type OwnershipViolation struct {
	Op   string
	Slot int
}

func (v OwnershipViolation) Error() string {
	return fmt.Sprintf("frame ownership violation: %s on slot %d", v.Op, v.Slot)
}

// FatalHandler is called for unrecoverable steady-state failures. The default
// handler logs and exits.
type FatalHandler func(err error)

var (
	fatalLog = log.New(os.Stderr, "FATAL: ", logFlags)
	exit     = os.Exit
)

// Fatal runs finalizers then writes err to the fatal log and exits.
func Fatal(err error, finalizers ...func()) {
	fatalTo(fatalLog, err, finalizers...)
}

func fatalTo(l *log.Logger, err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	l.Output(3, fmt.Sprintf("%+v", err))
	exit(1)
}

// PanicOnFatal turns fatal failures into panics so tests can observe them.
func PanicOnFatal(err error) {
	panic(err)
}
