package strale

import (
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInstanceWithValidation(t *testing.T) {
	loader := recorder.New(recorder.Default())
	cfg := DefaultConfig()
	logs := &logBuffer{}

	inst, err := CreateInstance(loader, &cfg, logs.logger(), []string{"VK_KHR_surface", "VK_KHR_xcb_surface"})
	require.NoError(t, err)
	defer inst.Destroy()

	desc := loader.LastInstance().Desc()
	assert.Equal(t, []string{"VK_KHR_surface", "VK_KHR_xcb_surface", ExtDebugReport}, desc.Extensions)
	assert.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, desc.Layers)
	assert.Equal(t, APIVersion, desc.APIVersion)
	assert.Equal(t, "strale", desc.AppName)
	require.NotNil(t, desc.Debug)

	loader.LastInstance().Emit(driver.DebugMessage{
		Severity: driver.DebugSeverityError,
		Prefix:   "Validation",
		Code:     7,
		Text:     "Validation Error: [ VUID-vkCmdDraw-None-02699 ] descriptor not bound",
	})
	assert.Contains(t, logs.err.String(), "[Validation] Code 7 : Validation Error: [ VUID-vkCmdDraw-None-02699 ]")

	loader.LastInstance().Emit(driver.DebugMessage{
		Severity:    driver.DebugSeverityWarning,
		Performance: true,
		Text:        "Validation Performance Warning: small allocation",
	})
	assert.NotContains(t, logs.warn.String(), "small allocation")
}

func TestCreateInstanceWithoutValidation(t *testing.T) {
	loader := recorder.New(recorder.Default())
	cfg := DefaultConfig()
	cfg.Validation.Enabled = false

	inst, err := CreateInstance(loader, &cfg, DiscardLogger(), []string{"VK_KHR_surface"})
	require.NoError(t, err)
	defer inst.Destroy()

	desc := loader.LastInstance().Desc()
	assert.Equal(t, []string{"VK_KHR_surface"}, desc.Extensions)
	assert.Empty(t, desc.Layers)
	assert.Nil(t, desc.Debug)
}

func TestCreateInstanceSkipsMissingLayers(t *testing.T) {
	rc := recorder.Default()
	rc.Layers = nil
	rc.InstanceExtensions = []string{"VK_KHR_surface"}
	loader := recorder.New(rc)
	cfg := DefaultConfig()
	logs := &logBuffer{}

	inst, err := CreateInstance(loader, &cfg, logs.logger(), []string{"VK_KHR_surface"})
	require.NoError(t, err)
	defer inst.Destroy()

	assert.Empty(t, inst.Layers)
	assert.Nil(t, loader.LastInstance().Desc().Debug)
	assert.Contains(t, logs.warn.String(), "VK_LAYER_KHRONOS_validation")
	assert.Contains(t, logs.warn.String(), ExtDebugReport)
}

func TestCreateInstanceMissingWindowExtension(t *testing.T) {
	rc := recorder.Default()
	rc.InstanceExtensions = []string{"VK_KHR_surface"}
	cfg := DefaultConfig()

	_, err := CreateInstance(recorder.New(rc), &cfg, DiscardLogger(), []string{"VK_KHR_surface", "VK_KHR_wayland_surface"})
	assert.ErrorIs(t, err, ErrDriverLoad)
	assert.Contains(t, err.Error(), "VK_KHR_wayland_surface")
}

func TestClassifyDebugMessage(t *testing.T) {
	for _, tc := range []struct {
		name     string
		msg      driver.DebugMessage
		dropPerf bool
		want     DebugAction
	}{
		{
			name: "ignored descriptor rule",
			msg: driver.DebugMessage{Severity: driver.DebugSeverityError,
				Text: "Validation Error: [ VUID-VkWriteDescriptorSet-descriptorType-00322 ] immutable sampler"},
			want: DebugDrop,
		},
		{
			name: "second ignored rule",
			msg: driver.DebugMessage{Severity: driver.DebugSeverityError,
				Text: "Validation Error: [ VUID-VkWriteDescriptorSet-descriptorType-02752 ] immutable sampler"},
			want: DebugDrop,
		},
		{
			name:     "performance dropped",
			msg:      driver.DebugMessage{Severity: driver.DebugSeverityWarning, Performance: true, Text: "slow"},
			dropPerf: true,
			want:     DebugDrop,
		},
		{
			name: "performance kept",
			msg:  driver.DebugMessage{Severity: driver.DebugSeverityWarning, Text: "Validation Performance Warning: slow"},
			want: DebugWarn,
		},
		{
			name: "undefined vuid",
			msg:  driver.DebugMessage{Severity: driver.DebugSeverityError, Text: "Validation Warning: [ VUID_Undefined ] odd"},
			want: DebugWarn,
		},
		{
			name: "info",
			msg:  driver.DebugMessage{Severity: driver.DebugSeverityInfo, Text: "loaded layer"},
			want: DebugInfo,
		},
		{
			name: "verbose",
			msg:  driver.DebugMessage{Severity: driver.DebugSeverityVerbose, Text: "chatter"},
			want: DebugInfo,
		},
		{
			name: "warning",
			msg:  driver.DebugMessage{Severity: driver.DebugSeverityWarning, Text: "Validation Warning: something"},
			want: DebugWarn,
		},
		{
			name: "error",
			msg:  driver.DebugMessage{Severity: driver.DebugSeverityError, Text: "Validation Error: [ VUID-x ] bad"},
			want: DebugError,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyDebugMessage(tc.msg, tc.dropPerf))
		})
	}
}

func TestMakeVersion(t *testing.T) {
	assert.EqualValues(t, 1<<22|3<<12, MakeVersion(1, 3, 0))
}
