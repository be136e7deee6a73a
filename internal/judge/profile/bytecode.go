package profile

import (
	"fmt"
	"path/filepath"
)

// Bytecode is the bytecode-VM variant (e.g. JVM-style languages). The
// source filename is fixed by the language's compiler, not by submission
// id, and RLIMIT_AS is waived: the VM reserves a large virtual address
// range at startup that has nothing to do with the user program's
// footprint, so the rlimit would kill it before any user code runs. The
// cgroup memory limit is the sole ceiling for this variant.
type Bytecode struct {
	// Name identifies the language (e.g. "java").
	Name string
	// ClassName is the fixed entry class the compiler demands, e.g. "Main".
	ClassName string
	// SourceExt is the source file extension for ClassName, e.g. ".java".
	SourceExt string
	// CompileTpl uses {src} and {extraFlags}; argv[0] is the compiler.
	CompileTpl string
	ExtraFlags string
	// VM is the interpreter/VM binary, e.g. "java".
	VM string
	// StackMB is the thread stack size passed to the VM.
	StackMB int
	// InitHeapMB is the VM's initial heap size.
	InitHeapMB int
}

func (b Bytecode) Kind() Kind { return KindBytecode }
func (b Bytecode) ID() string { return b.Name }

func (b Bytecode) SourceFilename(string) string {
	return b.ClassName + b.SourceExt
}

func (b Bytecode) NeedsCompilation() bool { return true }

func (b Bytecode) CompileArgv(string) []string {
	return expandArgv(b.CompileTpl, map[string]string{
		"src":        b.SourceFilename(""),
		"extraFlags": b.ExtraFlags,
	})
}

func (b Bytecode) RunArgv(_ string, memMB int) []string {
	stack := b.StackMB
	if stack <= 0 {
		stack = 64
	}
	init := b.InitHeapMB
	if init <= 0 {
		init = 16
	}
	return []string{
		b.VM,
		fmt.Sprintf("-heap_max=%dm", memMB),
		fmt.Sprintf("-heap_init=%dm", init),
		fmt.Sprintf("-stack=%dm", stack),
		"-gc=serial",
		"-exit-on-oom",
		"-classpath", ".",
		b.ClassName,
	}
}

func (b Bytecode) AddressSpaceLimit(int) AddressSpaceLimit {
	return Unlimited()
}

func (b Bytecode) Cleanup(_, workDir string) error {
	return removeIfExists(filepath.Join(workDir, b.ClassName+".class"))
}
