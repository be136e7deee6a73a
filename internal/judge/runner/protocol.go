package runner

// InitRequest is the JSON payload the parent sends to the sandbox-init
// helper over stdin. It carries everything the helper needs to gate on
// the start-gate pipe, isolate the network namespace, install rlimits,
// redirect standard streams, and exec the user program.
type InitRequest struct {
	WorkDir    string   `json:"work_dir"`
	Cmd        []string `json:"cmd"`
	Env        []string `json:"env"`
	InputPath  string   `json:"input_path"`
	OutputPath string   `json:"output_path"`
	ErrPath    string   `json:"err_path"`

	CPUTimeLimitSec int64 `json:"cpu_time_limit_sec"`
	FSizeLimitBytes int64 `json:"fsize_limit_bytes"`

	AddressSpaceUnlimited bool  `json:"address_space_unlimited"`
	AddressSpaceBytes     int64 `json:"address_space_bytes"`

	// DisableNetwork enters a new network namespace before exec.
	DisableNetwork bool `json:"disable_network"`
}
