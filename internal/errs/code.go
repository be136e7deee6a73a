package errs

// Code identifies the class of failure behind an Error.
type Code int

// Error code ranges:
// 10000-10099: generic / system
// 10100-10199: broker
// 10200-10299: filesystem & cgroup
// 13000-13199: judge / sandbox outcomes
const (
	Success ErrorCode = 10000

	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Timeout             ErrorCode = 10004

	BrokerConnectFailed ErrorCode = 10100
	BrokerPublishFailed ErrorCode = 10101
	BrokerPoisonMessage ErrorCode = 10102

	CgroupSetupFailed    ErrorCode = 10200
	CgroupTeardownFailed ErrorCode = 10201
	FilesystemError      ErrorCode = 10202

	LanguageNotSupported ErrorCode = 13000
	TestCaseMissing      ErrorCode = 13001
	JudgeSystemError     ErrorCode = 13002
	CompilationError     ErrorCode = 13003
	RuntimeError         ErrorCode = 13004
)

// ErrorCode is kept as an alias-friendly type name matching the taxonomy's
// conventional spelling in log fields and error payloads.
type ErrorCode = Code

var messages = map[ErrorCode]string{
	Success:              "success",
	InternalServerError:  "internal server error",
	InvalidParams:        "invalid parameters",
	NotFound:             "not found",
	Timeout:              "operation timed out",
	BrokerConnectFailed:  "broker connection failed",
	BrokerPublishFailed:  "broker publish failed",
	BrokerPoisonMessage:  "malformed job payload",
	CgroupSetupFailed:    "cgroup setup failed",
	CgroupTeardownFailed: "cgroup teardown failed",
	FilesystemError:      "filesystem error",
	LanguageNotSupported: "unsupported language",
	TestCaseMissing:      "test case file missing",
	JudgeSystemError:     "judge system error",
	CompilationError:     "compilation error",
	RuntimeError:         "runtime error",
}

// Message returns the default human-readable message for a code.
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return "unknown error"
}
