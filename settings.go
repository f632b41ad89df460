package ftpclientcore

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/naoina/toml"
)

// KeepAlive carries the control-connection keep-alive parameters spec.md
// §6 names but leaves unspecified in mechanism; the mechanism itself is a
// supplemented feature (SPEC_FULL.md §3), grounded on original_source/'s
// operats8.cpp.
type KeepAlive struct {
	SendEvery  time.Duration
	StopAfter  int
	Command    string
}

// Settings are the session parameters spec.md §6 lists as configuration
// consumed by the core. Loaded from TOML the way the teacher's
// sample.MainDriver loads OurSettings, but shaped around this engine's
// own session-level concerns rather than a server's listen address.
type Settings struct {
	AnonymousPassword string

	UseListingsCache bool
	PassiveMode      bool
	ListCommand      string

	KeepAlive KeepAlive

	DefaultTransferMode string // "ascii", "binary", or "autodetect"
	ASCIIFileMasks      []string

	NoDataTransferTimeout time.Duration
	ResumeOverlap         int64
	ResumeMinFileSize     int64

	CompressData bool
	Proxy        ProxySettings

	CannotCreatePolicy  string // "overwrite", "resume", "skip", "ask"
	AlreadyExistsPolicy string
	RetryOnCreatedPolicy  string
	RetryOnResumedPolicy  string
	AsciiForBinaryPolicy  string // "ignore", "ask-user", "retry-binary", "skip"
	UnknownAttrsPolicy    string

	AlwaysDisconnect bool
}

// ProxySettings names which proxy (if any) data connections dial through.
type ProxySettings struct {
	Kind     string // "none", "socks4", "socks4a", "socks5", "http-connect"
	Address  string
	User     string
	Password string
}

// defaultSettings mirrors the teacher's loadSettings defaulting (server.go:
// IdleTimeout/ConnectionTimeout/Banner default when zero), applied to this
// engine's own parameter set.
func defaultSettings() Settings {
	return Settings{
		UseListingsCache:      true,
		PassiveMode:           true,
		ListCommand:           "LIST",
		DefaultTransferMode:   "autodetect",
		NoDataTransferTimeout: 30 * time.Second,
		ResumeMinFileSize:     0,
		ResumeOverlap:         32768,
		CannotCreatePolicy:    "resume",
		AlreadyExistsPolicy:   "overwrite",
		AsciiForBinaryPolicy:  "ignore",
		KeepAlive: KeepAlive{
			SendEvery: 30 * time.Second,
			StopAfter: 10,
			Command:   "NOOP",
		},
	}
}

// LoadSettings reads a TOML settings file the way the teacher's
// sample.MainDriver.GetSettings reads its config (open, read fully,
// toml.Unmarshal onto a defaulted value), returning an EngineError on
// failure so callers get the same taxonomy as everything else.
func LoadSettings(path string) (*Settings, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, NewEngineError(KindInvalidPath, fmt.Sprintf("opening settings file %q", path), err)
	}

	settings := defaultSettings()
	if err := toml.Unmarshal(buf, &settings); err != nil {
		return nil, NewEngineError(KindInvalidPath, fmt.Sprintf("parsing settings file %q", path), err)
	}

	return &settings, nil
}
