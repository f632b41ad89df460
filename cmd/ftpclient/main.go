// ftpclient drives a single upload or download against a remote FTP(S)
// server, using ftpclientcore as its engine. It is a thin example driver in
// the same spirit as the teacher's own main.go: parse flags, load (or
// create) a settings file, build one queue item, and drive it to
// completion.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	ftpclientcore "github.com/fclairamb/ftpclientcore"
	"github.com/fclairamb/ftpclientcore/ftppath"
	"github.com/fclairamb/ftpclientcore/listing"
	"github.com/fclairamb/ftpclientcore/queue"
	"github.com/fclairamb/ftpclientcore/worker"
)

// unixListingRules is the built-in "ls -l"-style rule set this driver
// falls back to when no server type has yet been cached for a profile
// (listing/parser_test.go's unixRules is the same shape, written once
// here instead of duplicated from the test file). A real deployment
// would load a full candidate set (spec.md §4.6) from settings; this
// sample driver only ever needs the one common case.
const unixListingRules = `
*
all(1,kind)
word(permbits)
skip_white_spaces
number(links)
skip_white_spaces
word(owner)
skip_white_spaces
word(group)
skip_white_spaces
positive_number(size)
skip_white_spaces
month_3(month)
skip_white_spaces
day(day)
skip_white_spaces
year_or_time(year,time)
skip_white_spaces
unix_link(isdir,name,link)
;
`

// defaultUnixServerType compiles the built-in Unix server type, used as
// the fallback candidate when ServerTypeCache has nothing cached yet for
// this profile.
func defaultUnixServerType() (listing.ServerType, error) {
	rules, err := listing.Compile(unixListingRules)
	if err != nil {
		return listing.ServerType{}, err
	}

	cond, err := listing.CompileCondition(`syst_contains("UNIX")`)
	if err != nil {
		return listing.ServerType{}, err
	}

	return listing.ServerType{Name: "unix", Condition: cond, Rules: rules}, nil
}

var manager *ftpclientcore.Manager

func main() {
	var (
		confFile   string
		host, user string
		pass       string
		port       int
		get, put   string
		list       string
		target     string
		tlsMode    bool
		confOnly   bool
	)

	flag.StringVar(&confFile, "conf", "", "Settings file")
	flag.StringVar(&host, "host", "", "Remote host")
	flag.IntVar(&port, "port", 21, "Remote port")
	flag.StringVar(&user, "user", "anonymous", "Remote user")
	flag.StringVar(&pass, "pass", "", "Remote password")
	flag.StringVar(&get, "get", "", "Remote file to download")
	flag.StringVar(&put, "put", "", "Local file to upload")
	flag.StringVar(&list, "list", "", "Remote directory to list")
	flag.StringVar(&target, "to", "", "Destination name (defaults to the source's base name)")
	flag.BoolVar(&tlsMode, "tls", false, "Upgrade the control connection with AUTH TLS after logging in")
	flag.BoolVar(&confOnly, "conf-only", false, "Only create the settings file")
	flag.Parse()

	autoCreate := confOnly

	// Same reasoning as the teacher's main.go: a bare invocation is
	// probably a quick local run, so default to a settings file in the
	// working directory and create it if missing.
	if confFile == "" {
		confFile = "settings.toml"
		autoCreate = true
	}

	if autoCreate {
		if _, err := os.Stat(confFile); os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{"action": "conf_file.create", "confFile": confFile}).Info("No settings file, creating one")

			if werr := ioutil.WriteFile(confFile, defaultConfFileContent(), 0o644); werr != nil {
				logrus.WithFields(logrus.Fields{"action": "conf_file.could_not_create", "confFile": confFile}).Error("Couldn't create settings file ", werr)
			}
		}
	}

	settings, err := ftpclientcore.LoadSettings(confFile)
	if err != nil {
		logrus.Fatalf("Could not load settings: %v", err)
	}

	if confOnly {
		logrus.Info("Only creating settings")
		return
	}

	if host == "" {
		logrus.Fatal("Missing -host")
	}

	if get == "" && put == "" && list == "" {
		logrus.Fatal("Nothing to do: pass either -get, -put, or -list")
	}

	logger := newLogrusLogger(logrus.WithField("component", "engine"))

	manager = ftpclientcore.NewManager(*settings, logger)

	done := make(chan struct{})
	go signalHandler(done)

	id := ftpclientcore.Identity{User: user, Host: host, Port: port}

	session, err := manager.GetOrDialSession(id, pass, 15*time.Second)
	if err != nil {
		logrus.Fatalf("Could not connect: %v", err)
	}

	if tlsMode {
		if terr := session.StartTLS(&tls.Config{ServerName: host}); terr != nil {
			logrus.Fatalf("TLS upgrade failed: %v", terr)
		}
	}

	item := buildItem(get, put, list, target)

	if queue.Describe(item.Type).Explore {
		if st, ok := manager.ServerTypes.Get(id); ok {
			session.ServerType = st
		} else if st, sterr := defaultUnixServerType(); sterr == nil {
			session.ServerType = st
			manager.ServerTypes.Remember(id, st)
		} else {
			logrus.Warnf("Could not prepare a server type for listing parsing: %v", sterr)
		}
	}

	w := worker.New(item, "cli", logger, workerParams(*settings))
	exec := ftpclientcore.NewExecutor(session, w, afero.NewOsFs(), logger, settings.KeepAlive)
	exec.SetOpenedFiles(manager.OpenedFiles)

	// Session.Reconnect re-dials plaintext only (see DESIGN.md's noted
	// limitation), so a control connection that was upgraded with AUTH
	// TLS doesn't get reconnect-on-drop here: a second TLS handshake in
	// the middle of a queue item isn't implemented.
	if tlsMode {
		err = exec.Run()
	} else {
		err = exec.RunWithReconnect(pass, 15*time.Second, 3)
	}

	if err != nil {
		logrus.Fatalf("Transfer failed: %v", err)
	}

	manager.Forget(id)
	_ = session.Close()

	close(done)

	reportOutcome(item)
}

// buildItem turns the -get/-put/-list/-to flags into the one queue.Item
// this invocation drives, defaulting the destination name to the
// source's base name the way a shell cp/scp would.
func buildItem(get, put, list, target string) *queue.Item {
	if list != "" {
		return &queue.Item{
			Type:       queue.ExploreDir,
			State:      queue.Waiting,
			SourceName: list,
			PathType:   ftppath.Unix,
		}
	}

	if get != "" {
		name := target
		if name == "" {
			name = baseName(get)
		}

		return &queue.Item{
			Type:       queue.CopyFile,
			State:      queue.Waiting,
			SourceName: get,
			TargetName: name,
			PathType:   ftppath.Unix,
		}
	}

	name := target
	if name == "" {
		name = baseName(put)
	}

	return &queue.Item{
		Type:       queue.UploadCopyFile,
		State:      queue.Waiting,
		SourceName: put,
		TargetName: name,
		PathType:   ftppath.Unix,
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}

	return path
}

// workerParams translates the loaded Settings' string-typed policy fields
// into the worker package's enums, the same kind of string-to-constant
// mapping the teacher's sample driver does for its own TLS/banner settings.
func workerParams(settings ftpclientcore.Settings) worker.Params {
	mode := worker.ModeActive
	if settings.PassiveMode {
		mode = worker.ModePassive
	}

	return worker.Params{
		Mode:                  mode,
		ResumeMode:            parseResumeMode(settings.CannotCreatePolicy),
		ResumeMinFileSize:     settings.ResumeMinFileSize,
		ResumeOverlap:         settings.ResumeOverlap,
		AsciiPolicy:           parseAsciiPolicy(settings.AsciiForBinaryPolicy),
		ListCommand:           settings.ListCommand,
		NoDataTransferTimeout: settings.NoDataTransferTimeout,
	}
}

func parseResumeMode(policy string) worker.ResumeMode {
	switch policy {
	case "resume":
		return worker.ResumeOrOverwrite
	case "skip":
		return worker.ResumeOnly
	default:
		return worker.OverwriteOnly
	}
}

func parseAsciiPolicy(policy string) worker.AsciiForBinaryPolicy {
	switch policy {
	case "ask-user":
		return worker.AsciiForBinaryAskUser
	case "retry-binary":
		return worker.AsciiForBinaryRetryBinary
	case "skip":
		return worker.AsciiForBinarySkip
	default:
		return worker.AsciiForBinaryIgnore
	}
}

func reportOutcome(item *queue.Item) {
	switch item.State {
	case queue.Done:
		fmt.Println("done")
	case queue.Skipped:
		fmt.Println("skipped")
	case queue.UserInputNeeded:
		fmt.Println("needs input: code", item.LastProblemCode)
	default:
		fmt.Println("failed: code", item.LastProblemCode)
		os.Exit(1)
	}
}

// signalHandler mirrors the teacher's main.go signalHandler: SIGTERM closes
// every open session so any in-flight control/data read unblocks with an
// error, rather than leaving the process to hang waiting on a server that
// will never reply.
func signalHandler(done chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM)
	defer signal.Stop(ch)

	for {
		select {
		case sig := <-ch:
			if sig == syscall.SIGTERM {
				manager.CloseAll()
				return
			}
		case <-done:
			return
		}
	}
}

func defaultConfFileContent() []byte {
	return []byte(`# ftpclient settings file
#
# These are all the config parameters with their default values. If not
# present, the built-in defaults below are used.

use_listings_cache = true
passive_mode = true
list_command = "LIST"

default_transfer_mode = "autodetect"

# no_data_transfer_timeout defaults to 30s; uncomment to override.
# no_data_transfer_timeout = "30s"
resume_overlap = 32768
resume_min_file_size = 0

cannot_create_policy = "resume"
already_exists_policy = "overwrite"
ascii_for_binary_policy = "ignore"

[keep_alive]
# send_every defaults to 30s; uncomment to override.
# send_every = "30s"
stop_after = 10
command = "NOOP"

[proxy]
kind = "none"
`)
}
