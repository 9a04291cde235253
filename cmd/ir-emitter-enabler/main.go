// Command ir-emitter-enabler finds, and later replays, the vendor
// extension-unit control values that switch on a UVC infrared camera's
// IR emitter.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/irutil/ir-emitter-enabler/internal/store"
)

const (
	configPathEnv = "CONFIG"
	logPathEnv    = "LOG"

	defaultConfigPath = "$HOME/.config/ir-emitter-enabler/config.yaml"
	defaultLogPath    = "$HOME/.config/ir-emitter-enabler/ir-emitter-enabler.log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envOr returns the CONFIG/LOG build-time path, or def if the variable
// is unset. Shell variables inside either are expanded at runtime by
// store.NewStore (CONFIG) and os.ExpandEnv in run (LOG), not here.
func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func run(args []string) error {
	global := flag.NewFlagSet("ir-emitter-enabler", flag.ContinueOnError)
	printConfig := global.Bool("config", false, "print the configuration file to stdout and exit")
	printLog := global.Bool("log", false, "print the log file to stdout and exit")
	greyDevices := global.Bool("grey-devices", false, "print greyscale video devices and their controls, then exit")
	global.Usage = usage(global)
	global.SetInterspersed(false) // stop at the subcommand name; its own flags belong to it

	if err := global.Parse(args); err != nil {
		return err
	}

	logPath := os.ExpandEnv(envOr(logPathEnv, defaultLogPath))
	s := store.NewStore(envOr(configPathEnv, defaultConfigPath))
	setupLogging(logPath)

	switch {
	case *printConfig:
		text, err := s.Print()
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil

	case *printLog:
		text, err := printFile(logPath)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil

	case *greyDevices:
		return printGreyDevices()
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return fmt.Errorf("a subcommand is required")
	}

	switch rest[0] {
	case "configure":
		return cmdConfigure(s, rest[1:])
	case "run":
		return cmdRun(s, rest[1:])
	case "test":
		// Intentionally unimplemented: mirrors the original tool's Test
		// subcommand stub.
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown subcommand %q", rest[0])
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintln(os.Stderr, "usage: ir-emitter-enabler [flags] <configure|run|test> [flags]")
		fs.PrintDefaults()
	}
}

func setupLogging(path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Warn("failed to open log file, logging to stderr only")
		return
	}
	log.SetOutput(f)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func printFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "# " + path + "\n\n" + string(data), nil
}
