// Package exitcodes contains the constants representing possible chainrun
// exit codes.
package exitcodes

// ExitCode is just a type representing a process exit code for chainrun.
type ExitCode uint8

// list of exit codes used by chainrun
const (
	OK              ExitCode = 0
	CasesFailed     ExitCode = 1
	RunAborted      ExitCode = 97
	GenericEngine   ExitCode = 103
	InvalidConfig   ExitCode = 104
	ProviderFailure ExitCode = 106
	LoadError       ExitCode = 107
)
