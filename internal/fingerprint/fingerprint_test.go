package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleInputs() Inputs {
	return Inputs{
		PackageName:      "app",
		PackageHash:      0xABCDEF,
		DependencyHashes: map[string]uint64{"ui": 0x1, "core": 0x2},
		Command:          "next build",
		TaskName:         "build",
		InputGlobs:       []string{"src/**/*.ts"},
		OutputGlobs:      []string{".next"},
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	a := Compute(sampleInputs())
	b := Compute(sampleInputs())
	assert.Equal(t, a, b)
}

func TestComputeIsStableUnderDependencyMapReordering(t *testing.T) {
	in1 := sampleInputs()
	in1.DependencyHashes = map[string]uint64{"ui": 0x1, "core": 0x2}

	in2 := sampleInputs()
	in2.DependencyHashes = map[string]uint64{"core": 0x2, "ui": 0x1}

	assert.Equal(t, Compute(in1), Compute(in2))
}

func TestComputeChangesWithPackageHash(t *testing.T) {
	in := sampleInputs()
	before := Compute(in)
	in.PackageHash = 0x999999
	after := Compute(in)
	assert.NotEqual(t, before, after)
}

func TestComputeChangesWithCommand(t *testing.T) {
	in := sampleInputs()
	before := Compute(in)
	in.Command = "vite build"
	after := Compute(in)
	assert.NotEqual(t, before, after)
}

func TestComputeChangesWithTaskName(t *testing.T) {
	in := sampleInputs()
	before := Compute(in)
	in.TaskName = "test"
	after := Compute(in)
	assert.NotEqual(t, before, after)
}

func TestComputeChangesWithDependencyHash(t *testing.T) {
	in := sampleInputs()
	before := Compute(in)
	in.DependencyHashes["ui"] = 0xFFFF
	after := Compute(in)
	assert.NotEqual(t, before, after)
}

func TestComputeIsStableUnderGlobReordering(t *testing.T) {
	in1 := sampleInputs()
	in1.InputGlobs = []string{"src/**/*.ts", "src/**/*.tsx"}

	in2 := sampleInputs()
	in2.InputGlobs = []string{"src/**/*.tsx", "src/**/*.ts"}

	assert.Equal(t, Compute(in1), Compute(in2))
}
