package profile

import "testing"

func TestAddressSpaceProfileLaw(t *testing.T) {
	// Property 5: for bytecode-vm the limit is Unlimited; for native and
	// interpreted it is a concrete byte ceiling derived from mem_mb.
	cases := []struct {
		name      string
		p         Profile
		memMB     int
		unlimited bool
		wantBytes int64
	}{
		{"native", Native{Name: "cpp", SourceExt: ".cpp", CompileTpl: "g++ {src} -o {bin}"}, 64, false, 64 * mib},
		{"bytecode", Bytecode{Name: "java", ClassName: "Main", SourceExt: ".java", VM: "java"}, 256, true, 0},
		{"interpreted", Interpreted{Name: "python", SourceExt: ".py", Interpreter: "python3", OverheadMB: 50}, 64, false, 114 * mib},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.p.AddressSpaceLimit(tc.memMB)
			if got.Unlimited != tc.unlimited {
				t.Fatalf("Unlimited = %v, want %v", got.Unlimited, tc.unlimited)
			}
			if !tc.unlimited && got.Bytes != tc.wantBytes {
				t.Fatalf("Bytes = %d, want %d", got.Bytes, tc.wantBytes)
			}
		})
	}
}

func TestNeedsCompilationMatchesCompileArgv(t *testing.T) {
	r := Default()
	for _, lang := range []string{"cpp", "java", "python"} {
		p, err := r.Resolve(lang)
		if err != nil {
			t.Fatalf("resolve %s: %v", lang, err)
		}
		argv := p.CompileArgv("abc123")
		if p.NeedsCompilation() && len(argv) == 0 {
			t.Fatalf("%s: needs compilation but CompileArgv is empty", lang)
		}
		if !p.NeedsCompilation() && argv != nil {
			t.Fatalf("%s: does not need compilation but CompileArgv returned %v", lang, argv)
		}
	}
}

func TestRegistryUnsupportedLanguage(t *testing.T) {
	r := Default()
	_, err := r.Resolve("cobol")
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
	var unsupported *ErrUnsupportedLanguage
	if _, ok := err.(*ErrUnsupportedLanguage); !ok {
		t.Fatalf("got %T, want *ErrUnsupportedLanguage (%v)", err, unsupported)
	}
}

func TestNativeRunArgv(t *testing.T) {
	n := Native{Name: "cpp", SourceExt: ".cpp", CompileTpl: "g++ {src} -o {bin}"}
	argv := n.RunArgv("xyz", 64)
	want := "./bin_xyz"
	if len(argv) != 1 || argv[0] != want {
		t.Fatalf("RunArgv = %v, want [%s]", argv, want)
	}
}

func TestBytecodeSourceFilenameFixed(t *testing.T) {
	b := Bytecode{Name: "java", ClassName: "Main", SourceExt: ".java"}
	if got := b.SourceFilename("id1"); got != "Main.java" {
		t.Fatalf("SourceFilename = %q, want Main.java", got)
	}
	if got := b.SourceFilename("id2"); got != "Main.java" {
		t.Fatalf("SourceFilename must not vary with id, got %q", got)
	}
}
