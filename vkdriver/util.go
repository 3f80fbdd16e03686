package vkdriver

import (
	"fmt"
	"sync"

	"github.com/andewx/strale/driver"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}

// newError maps a result to the driver sentinels callers branch on. Other
// failures keep the binding's message.
func newError(ret vk.Result) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.NotReady:
		return errors.WithStack(driver.ErrNotReady)
	case vk.Timeout:
		return errors.WithStack(driver.ErrTimeout)
	case vk.Suboptimal:
		return errors.WithStack(driver.ErrSuboptimal)
	case vk.ErrorOutOfDate:
		return errors.WithStack(driver.ErrOutOfDate)
	case vk.ErrorDeviceLost:
		return errors.WithStack(driver.ErrDeviceLost)
	case vk.ErrorExtensionNotPresent:
		return errors.WithStack(driver.ErrExtensionNotPresent)
	case vk.ErrorFeatureNotPresent:
		return errors.WithStack(driver.ErrFeatureNotPresent)
	case vk.ErrorLayerNotPresent:
		return errors.WithStack(driver.ErrLayerNotPresent)
	case vk.ErrorInitializationFailed:
		return errors.WithStack(driver.ErrInitialization)
	}
	return errors.Wrapf(vk.Error(ret), "vulkan error (%d)", ret)
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// table hands out the opaque handles the core sees and keeps the binding's
// handle behind each one.
type table[H ~uint64, T any] struct {
	mu   sync.Mutex
	next H
	m    map[H]T
}

func (t *table[H, T]) put(v T) H {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[H]T)
	}
	t.next++
	t.m[t.next] = v
	return t.next
}

func (t *table[H, T]) get(h H) T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m[h]
}

func (t *table[H, T]) take(h H) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[h]
	delete(t.m, h)
	return v, ok
}

func (t *table[H, T]) getAll(hs []H) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]T, len(hs))
	for i, h := range hs {
		out[i] = t.m[h]
	}
	return out
}

// instanceExtensions lists the instance extensions available on the platform.
func instanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	orPanic(newError(ret))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	orPanic(newError(ret))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

func deviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	orPanic(newError(ret))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	orPanic(newError(ret))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

func validationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	orPanic(newError(ret))
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	orPanic(newError(ret))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}
