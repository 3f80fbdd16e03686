package strale

const (
	ExtSwapchain        = "VK_KHR_swapchain"
	ExtDynamicRendering = "VK_KHR_dynamic_rendering"
	ExtDebugReport      = "VK_EXT_debug_report"
)

// RayTracingExtensions are enabled together or not at all.
var RayTracingExtensions = []string{
	"VK_KHR_vulkan_memory_model",
	"VK_KHR_pipeline_library",
	"VK_KHR_deferred_host_operations",
	"VK_KHR_buffer_device_address",
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
}

type Extensions interface {
	HasRequired() (bool, []string)
	HasWanted() (bool, []string)
	GetExtensions() []string
}

// ExtensionSet resolves wanted and required names against what the driver
// actually reports, for instance extensions, layers or device extensions.
type ExtensionSet struct {
	wanted   []string
	required []string
	actual   []string
}

var _ Extensions = (*ExtensionSet)(nil)

func NewExtensionSet(wanted, required, actual []string) *ExtensionSet {
	return &ExtensionSet{wanted: wanted, required: required, actual: actual}
}

func (e *ExtensionSet) Has(name string) bool {
	return contains(e.actual, name)
}

// HasAll reports whether every name is available.
func (e *ExtensionSet) HasAll(names []string) bool {
	return len(missing(names, e.actual)) == 0
}

func (e *ExtensionSet) HasRequired() (bool, []string) {
	m := missing(e.required, e.actual)
	return len(m) == 0, m
}

func (e *ExtensionSet) HasWanted() (bool, []string) {
	m := missing(e.wanted, e.actual)
	return len(m) == 0, m
}

// GetExtensions returns the required names followed by every available
// wanted name, without duplicates.
func (e *ExtensionSet) GetExtensions() []string {
	implement := make([]string, 0, len(e.required)+len(e.wanted))
	for _, req := range e.required {
		if !contains(implement, req) {
			implement = append(implement, req)
		}
	}
	for _, want := range e.wanted {
		if contains(e.actual, want) && !contains(implement, want) {
			implement = append(implement, want)
		}
	}
	return implement
}

func missing(names, actual []string) []string {
	var out []string
	for _, n := range names {
		if !contains(actual, n) {
			out = append(out, n)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
