package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMonitorPlus(t *testing.T) {
	d := TaskMonitorPlus("")

	assert.Equal(t, "Task Monitor Plus", d.Name)
	assert.Equal(t, DefaultPrefix, d.Prefix)
	assert.Equal(t, "{4826ED71-64DE-496A-84A4-955402DEC3BC}", d.GUID)
	require.Len(t, d.Events, 8)
	assert.Equal(t, "TaskMonitorPlus.Created.<ExeName>", d.Events[0].Name)
	assert.False(t, d.Events[0].HasPayload)
	assert.False(t, d.Events[1].HasPayload)
	assert.True(t, d.Events[2].HasPayload)
	for _, e := range d.Events {
		assert.NotEmpty(t, e.Description, e.Name)
	}
	assert.Len(t, d.Payload, 5)
}

func TestTaskMonitorPlusCustomPrefix(t *testing.T) {
	d := TaskMonitorPlus("Tasks")
	assert.Equal(t, "Tasks.Flashed.<ExeName>", d.Events[6].Name)
}
