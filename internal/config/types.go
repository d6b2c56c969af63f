// Package config provides the manifest and settings model for agld.
package config

import "time"

// Settings is the process-lifetime singleton configuration of the
// supervisor itself (as opposed to a sub-service manifest).
type Settings struct {
	// ManifestFolder is the directory scanned for sub-service manifests.
	ManifestFolder string `yaml:"manifest_folder"`
	// ManifestExt is the file extension manifests must carry (including the dot).
	ManifestExt string `yaml:"manifest_ext"`
	// HTTPProbeTimeoutMS is the timeout, in milliseconds, for http/https actions.
	HTTPProbeTimeoutMS int `yaml:"http_probe_timeout_ms"`
	// StateFilePath is the path the binary state snapshot is written to.
	StateFilePath string `yaml:"state_file"`
	// HTMLID, when non-empty, enables the HTML dump and is rendered as its title.
	HTMLID string `yaml:"html_id,omitempty"`
	// LevelStartTimeoutSec bounds how long a level waits for its services to
	// reach Running before Start raises. 0 disables the wait.
	LevelStartTimeoutSec int `yaml:"level_start_timeout_sec"`
	// ExtraParams holds the extra command-line parameters passed to the
	// supervisor binary, exposed to manifests as %agl.params%.
	ExtraParams string `yaml:"-"`
}

// OS identifies a target operating-system family for a manifest's OS filter.
type OS string

const (
	// OSAny matches every host.
	OSAny OS = "any"
	// OSWindows matches only Windows hosts.
	OSWindows OS = "windows"
	// OSLinux matches only Linux hosts.
	OSLinux OS = "linux"
	// OSDarwin matches only macOS hosts.
	OSDarwin OS = "darwin"
	// OSBSD matches the BSD family.
	OSBSD OS = "bsd"
)

// StartOption is a flag in a manifest's StartOptions set.
type StartOption string

const (
	// OptReplaceEnv replaces (rather than augments) the parent environment.
	OptReplaceEnv StartOption = "soReplaceEnv"
	// OptWinJobCloseChildren requests a breakaway job on Windows so that
	// stopping this sub-service cascades only to its own descendants.
	OptWinJobCloseChildren StartOption = "soWinJobCloseChildren"
)

// Manifest is the parsed, on-disk description of one sub-service.
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Run         string `yaml:"run,omitempty"`
	Level       int    `yaml:"level"`
	OS          OS     `yaml:"os,omitempty"`

	Start []string `yaml:"start,omitempty"`
	Stop  []string `yaml:"stop,omitempty"`
	Watch []string `yaml:"watch,omitempty"`

	StartEnv      []string      `yaml:"start_env,omitempty"`
	StartOptions  []StartOption `yaml:"start_options,omitempty"`
	StartWorkDir  string        `yaml:"start_work_dir,omitempty"`

	StopRunAbortTimeoutSec int   `yaml:"stop_run_abort_timeout_sec,omitempty"`
	// RetryStableSec is a pointer so that an explicit "0" (disable
	// auto-restart) can be told apart from an absent field (apply the
	// default of 60). A plain int cannot carry that distinction.
	RetryStableSec *int  `yaml:"retry_stable_sec,omitempty"`
	AbortExitCodes []int `yaml:"abort_exit_codes,omitempty"`
	WatchDelaySec  int   `yaml:"watch_delay_sec,omitempty"`

	RedirectLogFile        string `yaml:"redirect_log_file,omitempty"`
	RedirectLogRotateFiles int    `yaml:"redirect_log_rotate_files,omitempty"`
	RedirectLogRotateBytes int64  `yaml:"redirect_log_rotate_bytes,omitempty"`

	// Path is the source file this manifest was loaded from, not serialized.
	Path string `yaml:"-"`
}

// HasOption reports whether opt is present in StartOptions.
func (m *Manifest) HasOption(opt StartOption) bool {
	for _, o := range m.StartOptions {
		if o == opt {
			return true
		}
	}
	return false
}

// Disabled reports whether the manifest's level takes it out of the active set.
func (m *Manifest) Disabled() bool {
	return m.Level <= 0
}

// MatchesOS reports whether the manifest's OS filter matches the given host OS.
func (m *Manifest) MatchesOS(hostOS string) bool {
	if m.OS == "" || m.OS == OSAny {
		return true
	}
	return string(m.OS) == hostOS
}

// EffectiveActions returns the action list for a phase, applying the
// spec's "empty list with non-empty run" implicit default.
func (m *Manifest) EffectiveActions(phase string) []string {
	var list []string
	switch phase {
	case "start":
		list = m.Start
	case "stop":
		list = m.Stop
	case "watch":
		list = m.Watch
	}
	if len(list) == 0 && m.Run != "" {
		return []string{phase + ":%run%"}
	}
	return list
}

// EffectiveRetryStableSec resolves RetryStableSec against its default,
// preserving an explicit 0 (which disables auto-restart).
func (m *Manifest) EffectiveRetryStableSec() int {
	if m.RetryStableSec == nil {
		return defaultRetryStableSec
	}
	return *m.RetryStableSec
}

// defaultStopRunAbortTimeoutSec is applied when StopRunAbortTimeoutSec is unset.
const defaultStopRunAbortTimeoutSec = 10

// defaultRetryStableSec is applied when RetryStableSec is unset in the YAML
// (distinct from an explicit 0, which disables auto-restart).
const defaultRetryStableSec = 60

// defaultWatchDelaySec is applied when WatchDelaySec is unset.
const defaultWatchDelaySec = 60

// defaultRedirectLogRotateBytes is the default rotation threshold, ~100MiB.
const defaultRedirectLogRotateBytes int64 = 100 * 1024 * 1024

// Duration is a YAML-unmarshalable wrapper around time.Duration for
// fields authored as "5s"-style strings. No Settings field uses it; the
// Settings timeouts are plain integer counts.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
