package profile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Native is the native-compiled variant (e.g. C/C++): compiles to a
// standalone binary and runs it directly, so RLIMIT_AS is installed at
// exactly the problem's memory limit.
type Native struct {
	// Name identifies the language (e.g. "cpp").
	Name string
	// SourceExt is the source file extension, including the dot.
	SourceExt string
	// CompileTpl is a command template using {src}, {bin}, {extraFlags}
	// placeholders; argv[0] is the compiler.
	CompileTpl string
	// ExtraFlags are appended verbatim into {extraFlags}.
	ExtraFlags string
}

func (n Native) Kind() Kind { return KindNative }
func (n Native) ID() string { return n.Name }

func (n Native) SourceFilename(id string) string {
	return fmt.Sprintf("submit_%s%s", id, n.SourceExt)
}

func (n Native) NeedsCompilation() bool { return true }

func (n Native) CompileArgv(id string) []string {
	return expandArgv(n.CompileTpl, map[string]string{
		"src":        n.SourceFilename(id),
		"bin":        binName(id),
		"extraFlags": n.ExtraFlags,
	})
}

func (n Native) RunArgv(id string, _ int) []string {
	return []string{"./" + binName(id)}
}

func (n Native) AddressSpaceLimit(memMB int) AddressSpaceLimit {
	return Bytes(int64(memMB) * mib)
}

func (n Native) Cleanup(id, workDir string) error {
	return removeIfExists(filepath.Join(workDir, binName(id)))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
