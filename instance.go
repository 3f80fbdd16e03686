package strale

import (
	"strings"

	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// APIVersion is the Vulkan version requested at instance creation.
var APIVersion = MakeVersion(1, 3, 0)

func MakeVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}

// Instance is the process-wide driver connection. It is destroyed last.
type Instance struct {
	Raw        driver.Instance
	Extensions []string
	Layers     []string

	log *Logger
}

// CreateInstance connects to the driver with the window's required
// extensions. Validation layers and the debug callback are added when the
// config enables them and the loader reports them; missing ones are logged
// and skipped.
func CreateInstance(loader driver.Loader, cfg *Config, log *Logger, requiredExtensions []string) (*Instance, error) {
	actual, err := loader.InstanceExtensions()
	if err != nil {
		return nil, errors.Wrapf(ErrDriverLoad, "enumerate instance extensions: %v", err)
	}

	var wanted []string
	if cfg.Validation.Enabled {
		wanted = append(wanted, ExtDebugReport)
	}
	exts := NewExtensionSet(wanted, requiredExtensions, actual)
	if ok, missing := exts.HasRequired(); !ok {
		return nil, errors.Wrapf(ErrDriverLoad, "instance extensions not available: %s", strings.Join(missing, ", "))
	}
	if ok, missing := exts.HasWanted(); !ok {
		log.Warnf("instance extensions not available, skipping: %s", strings.Join(missing, ", "))
	}

	var layers []string
	if cfg.Validation.Enabled {
		available, err := loader.InstanceLayers()
		if err != nil {
			return nil, errors.Wrapf(ErrDriverLoad, "enumerate layers: %v", err)
		}
		layerSet := NewExtensionSet(cfg.Validation.Layers, nil, available)
		if ok, missing := layerSet.HasWanted(); !ok {
			log.Warnf("validation layers not available, skipping: %s", strings.Join(missing, ", "))
		}
		layers = layerSet.GetExtensions()
	}

	desc := driver.InstanceDesc{
		AppName:    cfg.App.Name,
		EngineName: "strale",
		APIVersion: APIVersion,
		Extensions: exts.GetExtensions(),
		Layers:     layers,
	}
	if cfg.Validation.Enabled && exts.Has(ExtDebugReport) {
		dropPerf := cfg.Validation.DropPerformanceWarnings
		desc.Debug = func(msg driver.DebugMessage) {
			routeDebugMessage(log, msg, dropPerf)
		}
	}

	raw, err := loader.CreateInstance(desc)
	if err != nil {
		return nil, errors.Wrapf(ErrDriverLoad, "create instance: %v", err)
	}
	log.Infof("instance created: api %d.%d, %d extensions, %d layers",
		APIVersion>>22, APIVersion>>12&0x3ff, len(desc.Extensions), len(desc.Layers))

	return &Instance{
		Raw:        raw,
		Extensions: desc.Extensions,
		Layers:     layers,
		log:        log,
	}, nil
}

// Destroy releases the debug callback and the driver connection.
func (i *Instance) Destroy() {
	if i.Raw != nil {
		i.Raw.Destroy()
		i.Raw = nil
	}
}

type DebugAction int

const (
	DebugDrop DebugAction = iota
	DebugInfo
	DebugWarn
	DebugError
)

func (a DebugAction) String() string {
	switch a {
	case DebugDrop:
		return "drop"
	case DebugInfo:
		return "info"
	case DebugWarn:
		return "warn"
	}
	return "error"
}

// Immutable-sampler descriptor pushes trip these rules spuriously.
var ignoredValidationMessages = []string{
	"Validation Error: [ VUID-VkWriteDescriptorSet-descriptorType-00322",
	"Validation Error: [ VUID-VkWriteDescriptorSet-descriptorType-02752",
}

// ClassifyDebugMessage decides where a validation message goes. It never
// asks the caller to abort.
func ClassifyDebugMessage(msg driver.DebugMessage, dropPerformance bool) DebugAction {
	for _, prefix := range ignoredValidationMessages {
		if strings.HasPrefix(msg.Text, prefix) {
			return DebugDrop
		}
	}
	if msg.Performance || strings.HasPrefix(msg.Text, "Validation Performance Warning") {
		if dropPerformance {
			return DebugDrop
		}
		return DebugWarn
	}
	if strings.HasPrefix(msg.Text, "Validation Warning: [ VUID_Undefined ]") {
		return DebugWarn
	}
	switch msg.Severity {
	case driver.DebugSeverityVerbose, driver.DebugSeverityInfo:
		return DebugInfo
	case driver.DebugSeverityWarning:
		return DebugWarn
	}
	return DebugError
}

func routeDebugMessage(log *Logger, msg driver.DebugMessage, dropPerformance bool) {
	switch ClassifyDebugMessage(msg, dropPerformance) {
	case DebugInfo:
		log.Infof("[%s] Code %d : %s", msg.Prefix, msg.Code, msg.Text)
	case DebugWarn:
		log.Warnf("[%s] Code %d : %s", msg.Prefix, msg.Code, msg.Text)
	case DebugError:
		log.Errorf("[%s] Code %d : %s", msg.Prefix, msg.Code, msg.Text)
	}
}
