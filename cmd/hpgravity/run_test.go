package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/hpgravity/pkg/analysis"
	"github.com/oxygene76/hpgravity/pkg/utils"
)

func TestNewRunReport(t *testing.T) {
	sys, err := utils.DefaultConfig().BuildSystem(nil)
	require.NoError(t, err)
	require.NoError(t, sys.Step())

	report := newRunReport(sys, time.Second, 20)
	assert.Equal(t, uint64(1), report.Steps)
	assert.Equal(t, "sun", report.ReferenceFrame)
	assert.Equal(t, "relative", report.FrameMode)
	require.Len(t, report.Bodies, 3)

	sun := report.Bodies[0]
	assert.Equal(t, "sun", sun.ID)
	assert.Equal(t, [3]float32{}, sun.Render)
	assert.Equal(t, [3]string{"0", "0", "0"}, sun.Position)
}

func TestPrintReportRejectsUnknownFormat(t *testing.T) {
	sys, err := utils.DefaultConfig().BuildSystem(nil)
	require.NoError(t, err)

	assert.Error(t, printReport(newRunReport(sys, 0, 10), "xml", 10))
}

func TestPad(t *testing.T) {
	assert.Equal(t, []string{"1   ", "22  ", "333 "}, pad([3]string{"1", "22", "333"}, 4))
}

func TestWriteDriftCSV(t *testing.T) {
	sys, err := utils.DefaultConfig().BuildSystem(nil)
	require.NoError(t, err)

	tracker := analysis.NewTracker()
	require.NoError(t, tracker.OnSnapshot(sys.Steps(), sys.Bodies()))
	require.NoError(t, sys.Step())
	require.NoError(t, tracker.OnSnapshot(sys.Steps(), sys.Bodies()))

	path := filepath.Join(t.TempDir(), "drift.csv")
	require.NoError(t, writeDriftCSV(tracker, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "step,mass_moment_drift,sun-earth"))

	err = writeDriftCSV(tracker, filepath.Join(t.TempDir(), "missing", "drift.csv"))
	assert.Error(t, err)
}
