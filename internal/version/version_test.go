package version

import "testing"

func TestDefaultsInitialized(t *testing.T) {
	// All three are "unknown" until overridden by ldflags at release time.
	for name, v := range map[string]string{
		"Version":   Version,
		"BuildTime": BuildTime,
		"GitCommit": GitCommit,
	} {
		if v == "" {
			t.Errorf("%s should not be empty", name)
		}
	}
}
