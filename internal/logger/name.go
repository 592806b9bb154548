package logger

// ToolName prefixes every log file this tool writes.
const ToolName = "forkrun"

// LogPrefixes returns the log file name prefixes cleanup looks for.
func LogPrefixes() []string { return []string{ToolName} }
