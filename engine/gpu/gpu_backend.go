package gpu

import "fmt"

// BackendType identifies the GPU backend implementation behind a Device.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-native backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHeadless selects the in-memory backend. Nothing is drawn; copies, query
	// resolves and map requests are executed on the CPU.
	BackendTypeHeadless
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	default:
		return fmt.Sprintf("BackendType(%d)", int(b))
	}
}

// ParseBackendType converts a backend name as used in configuration files.
//
// Parameters:
//   - name: "wgpu" or "headless"
//
// Returns:
//   - BackendType: the backend
//   - error: an error if the name is unknown
func ParseBackendType(name string) (BackendType, error) {
	switch name {
	case "wgpu", "":
		return BackendTypeWGPU, nil
	case "headless":
		return BackendTypeHeadless, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", name)
	}
}
