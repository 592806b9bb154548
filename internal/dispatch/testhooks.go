package dispatch

func SetExecutablePathFn(fn func() (string, error)) (restore func()) {
	prev := executablePath
	if fn != nil {
		executablePath = fn
	} else {
		executablePath = defaultExecutablePath
	}
	return func() { executablePath = prev }
}
