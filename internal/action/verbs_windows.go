//go:build windows

package action

// platformSupportsService is true only on Windows, where the "service"
// verb controls the Windows Service Control Manager.
const platformSupportsService = true
