package profile

import "fmt"

// Interpreted is the interpreted variant (e.g. script languages): no
// compile step, and the address-space limit is the problem's memory limit
// plus a fixed headroom for the interpreter's own virtual footprint, which
// is independent of user allocations.
type Interpreted struct {
	// Name identifies the language (e.g. "python").
	Name string
	// SourceExt is the source file extension, including the dot.
	SourceExt string
	// Interpreter is the interpreter binary, e.g. "python3".
	Interpreter string
	// OverheadMB is added to the problem's memory limit before installing
	// RLIMIT_AS.
	OverheadMB int
}

func (i Interpreted) Kind() Kind { return KindInterpreted }
func (i Interpreted) ID() string { return i.Name }

func (i Interpreted) SourceFilename(id string) string {
	return fmt.Sprintf("submit_%s%s", id, i.SourceExt)
}

func (i Interpreted) NeedsCompilation() bool { return false }

func (i Interpreted) CompileArgv(string) []string { return nil }

func (i Interpreted) RunArgv(id string, _ int) []string {
	return []string{i.Interpreter, i.SourceFilename(id)}
}

func (i Interpreted) AddressSpaceLimit(memMB int) AddressSpaceLimit {
	overhead := i.OverheadMB
	if overhead <= 0 {
		overhead = 50
	}
	return Bytes(int64(memMB+overhead) * mib)
}

func (i Interpreted) Cleanup(string, string) error { return nil }
