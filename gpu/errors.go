package gpu

import (
	"fmt"

	"meshview/core"
)

// AllocError reports that the device could not allocate a GPU object.
type AllocError struct {
	Kind ObjectKind
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("gpu: %s allocation failed", e.Kind)
}

// MissingMaterialError reports a part whose material key is not present in
// the registry. This is a caller bug: the registry must be populated for every
// key the mesh references before building.
type MissingMaterialError struct {
	Part int
	Key  core.MaterialKey
}

func (e *MissingMaterialError) Error() string {
	return fmt.Sprintf("gpu: part %d references unknown material %s", e.Part, e.Key)
}

// DeviceError wraps an error the device reported after a build step.
type DeviceError struct {
	Step string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("gpu: %s: %v", e.Step, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
